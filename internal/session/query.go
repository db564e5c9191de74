package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/score"
	"github.com/victornm/quizshare/internal/store"
)

// Detail is a session as seen at one instant: its derived state and deadline are
// computed from the clock at read time.
type Detail struct {
	Session  domain.Session
	Quiz     domain.Quiz
	State    domain.SessionState
	Deadline time.Time
	Answers  []domain.Answer
}

type GetSessionRequest struct {
	Viewer    domain.Viewer
	SessionID string
}

// GetSession is open to the participant and to the quiz creator.
func (s *Service) GetSession(ctx context.Context, req GetSessionRequest) (*Detail, error) {
	var d Detail
	err := s.store.View(ctx, func(tx store.Tx) error {
		ss, q, err := s.readable(ctx, tx, req.Viewer, req.SessionID)
		if err != nil {
			return err
		}

		answers, err := tx.ListAnswers(ctx, ss.SessionID)
		if err != nil {
			return err
		}

		d = Detail{
			Session:  ss,
			Quiz:     q,
			State:    ss.State(s.now(), q.Duration()),
			Deadline: ss.StartTime.Add(q.Duration()),
			Answers:  answers,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &d, nil
}

type Result struct {
	Session domain.Session
	Quiz    domain.Quiz
	score.Result
}

// GetResult grades a completed session. The stored score is the one computed at
// completion; per-answer correctness reflects the choices as they are now.
func (s *Service) GetResult(ctx context.Context, req GetSessionRequest) (*Result, error) {
	var res Result
	err := s.store.View(ctx, func(tx store.Tx) error {
		ss, q, err := s.readable(ctx, tx, req.Viewer, req.SessionID)
		if err != nil {
			return err
		}
		if !ss.Completed() {
			return errors.State("session not completed yet: session=%s", ss.SessionID)
		}

		answers, err := tx.ListAnswers(ctx, ss.SessionID)
		if err != nil {
			return err
		}

		graded := score.Compute(q.Questions, answers)
		graded.Score = *ss.Score

		res = Result{Session: ss, Quiz: q, Result: graded}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

type ListSessionsRequest struct {
	Viewer domain.Viewer
}

// ListSessions returns the viewer's own attempts and attempts on quizzes they created.
func (s *Service) ListSessions(ctx context.Context, req ListSessionsRequest) ([]domain.Session, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	var res []domain.Session
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		res, err = tx.ListSessions(ctx, store.SessionFilter{
			UserID:        req.Viewer.UserID,
			QuizCreatorID: req.Viewer.UserID,
		})
		return err
	})
	return res, err
}

func (s *Service) readable(ctx context.Context, tx store.Tx, viewer domain.Viewer, sessionID string) (domain.Session, domain.Quiz, error) {
	ss, err := tx.GetSession(ctx, sessionID, false)
	if stderrors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.Quiz{}, errors.NotFound("session not found: session=%s", sessionID)
	}
	if err != nil {
		return domain.Session{}, domain.Quiz{}, err
	}

	q, err := quizWithQuestions(ctx, tx, ss.QuizID)
	if err != nil {
		return domain.Session{}, domain.Quiz{}, err
	}

	participant := ss.UserID == viewer.UserID
	creator := !viewer.IsAnonymous() && q.CreatorID == viewer.UserID
	if !participant && !creator {
		return domain.Session{}, domain.Quiz{}, errors.Permission("no access to session: session=%s", sessionID)
	}

	return ss, q, nil
}
