// Package session runs timed quiz attempts: start, resume, answer, complete and score.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizshare/internal/catalog"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/event"
	"github.com/victornm/quizshare/internal/score"
	"github.com/victornm/quizshare/internal/store"
)

type Config struct {
	Store    store.Store
	EventBus *event.Bus
	// Now defaults to time.Now. Timeouts are always computed from it, never stored.
	Now func() time.Time
}

type Service struct {
	store store.Store
	eb    *event.Bus
	now   func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store: c.Store,
		eb:    c.EventBus,
		now:   c.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type StartRequest struct {
	Viewer domain.Viewer
	QuizID string
}

// Start always creates a new attempt. Callers that want to reuse an open attempt
// use ResumeOrStart.
func (s *Service) Start(ctx context.Context, req StartRequest) (*domain.Session, error) {
	ss, _, err := s.start(ctx, req, false)
	return ss, err
}

// ResumeOrStart returns the viewer's most recent open attempt on the quiz, or starts
// a new one. Anonymous viewers always get a new attempt. resumed reports which
// happened.
func (s *Service) ResumeOrStart(ctx context.Context, req StartRequest) (ss *domain.Session, resumed bool, err error) {
	return s.start(ctx, req, !req.Viewer.IsAnonymous())
}

func (s *Service) start(ctx context.Context, req StartRequest, resume bool) (*domain.Session, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("generate session ID: %w", err)
	}

	var (
		ss      domain.Session
		resumed bool
	)
	err = s.store.Update(ctx, func(tx store.Tx) error {
		q, a, err := catalog.AuthorizeTx(ctx, tx, req.Viewer, req.QuizID)
		if err != nil {
			return err
		}
		if !a.CanAttempt() {
			return errors.Permission("no attempt access to quiz: quiz=%s", q.QuizID)
		}

		if resume {
			open, err := s.findActive(ctx, tx, q, req.Viewer.UserID)
			if err == nil {
				ss, resumed = open, true
				return nil
			}
			if !errors.Is(err, errors.CodeNotFound) {
				return err
			}
		}

		ss = domain.Session{
			SessionID: id.String(),
			QuizID:    q.QuizID,
			UserID:    req.Viewer.UserID,
			StartTime: s.now(),
		}
		return tx.InsertSession(ctx, ss)
	})
	if err != nil {
		return nil, false, err
	}

	if resumed {
		slog.InfoContext(ctx, "session: resumed", "session", ss.SessionID, "quiz", ss.QuizID)
		return &ss, true, nil
	}

	slog.InfoContext(ctx, "session: started", "session", ss.SessionID, "quiz", ss.QuizID)
	s.eb.Publish(ctx, domain.EventSessionStarted{Session: ss})

	return &ss, false, nil
}

type FindActiveSessionRequest struct {
	Viewer domain.Viewer
	QuizID string
}

// FindActiveSession returns the viewer's most recent attempt on the quiz that is
// neither completed nor timed out.
func (s *Service) FindActiveSession(ctx context.Context, req FindActiveSessionRequest) (*domain.Session, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.NotFound("no active session for anonymous viewers")
	}

	var ss domain.Session
	err := s.store.View(ctx, func(tx store.Tx) error {
		q, err := tx.GetQuiz(ctx, req.QuizID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NotFound("quiz not found: quiz=%s", req.QuizID)
		}
		if err != nil {
			return err
		}

		ss, err = s.findActive(ctx, tx, q, req.Viewer.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ss, nil
}

func (s *Service) findActive(ctx context.Context, tx store.Tx, q domain.Quiz, userID string) (domain.Session, error) {
	open, err := tx.ListSessions(ctx, store.SessionFilter{UserID: userID, QuizID: q.QuizID, OpenOnly: true})
	if err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	for _, ss := range open {
		if !ss.TimedOut(now, q.Duration()) {
			return ss, nil
		}
	}

	return domain.Session{}, errors.NotFound("no active session: quiz=%s", q.QuizID)
}

type SubmitAnswerRequest struct {
	Viewer     domain.Viewer
	SessionID  string
	QuestionID string
	ChoiceID   string
}

// SubmitAnswer records the selected choice for a question, replacing any earlier
// selection for it. A session found timed out is completed with the answers it
// already has and TimedOut is returned; that completion is committed.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*domain.Answer, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate answer ID: %w", err)
	}

	var (
		ans       domain.Answer
		completed *domain.EventSessionCompleted
	)
	err = s.store.Update(ctx, func(tx store.Tx) error {
		ss, err := s.participantSession(ctx, tx, req.Viewer, req.SessionID)
		if err != nil {
			return err
		}
		if ss.Completed() {
			return errors.State("session already completed: session=%s", ss.SessionID)
		}

		q, err := quizWithQuestions(ctx, tx, ss.QuizID)
		if err != nil {
			return err
		}

		now := s.now()
		if ss.TimedOut(now, q.Duration()) {
			e, err := s.finalize(ctx, tx, ss, q, now)
			if err != nil {
				return err
			}
			e.TimedOut = true
			completed = &e
			return nil
		}

		question, ok := q.Question(req.QuestionID)
		if !ok {
			return errors.Validation("question does not belong to quiz: question=%s, quiz=%s", req.QuestionID, q.QuizID)
		}
		if _, ok := question.Choice(req.ChoiceID); !ok {
			return errors.Validation("choice does not belong to question: choice=%s, question=%s", req.ChoiceID, question.QuestionID)
		}

		ans, err = tx.UpsertAnswer(ctx, domain.Answer{
			AnswerID:   id.String(),
			SessionID:  ss.SessionID,
			QuestionID: question.QuestionID,
			ChoiceID:   req.ChoiceID,
			AnswerTime: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if completed != nil {
		slog.InfoContext(ctx, "session: timed out on submission",
			"session", completed.Session.SessionID,
			"score", completed.Session.Score.String(),
		)
		s.eb.Publish(ctx, *completed)

		return nil, errors.TimedOut("session timed out and was completed: session=%s", req.SessionID)
	}

	s.eb.Publish(ctx, domain.EventAnswerSubmitted{Answer: ans})
	return &ans, nil
}

type CompleteRequest struct {
	Viewer    domain.Viewer
	SessionID string
}

// Complete finalizes the session and scores it. Completing twice is a state error
// and leaves the first score untouched.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*domain.Session, error) {
	var e domain.EventSessionCompleted
	err := s.store.Update(ctx, func(tx store.Tx) error {
		ss, err := s.participantSession(ctx, tx, req.Viewer, req.SessionID)
		if err != nil {
			return err
		}
		if ss.Completed() {
			return errors.State("session already completed: session=%s", ss.SessionID)
		}

		q, err := quizWithQuestions(ctx, tx, ss.QuizID)
		if err != nil {
			return err
		}

		now := s.now()
		timedOut := ss.TimedOut(now, q.Duration())
		if e, err = s.finalize(ctx, tx, ss, q, now); err != nil {
			return err
		}
		e.TimedOut = timedOut
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "session: completed",
		"session", e.Session.SessionID,
		"score", e.Session.Score.String(),
	)
	s.eb.Publish(ctx, e)

	return &e.Session, nil
}

// finalize scores the session from its recorded answers and sets the completion
// time. The write only succeeds while the session is still open.
func (s *Service) finalize(ctx context.Context, tx store.Tx, ss domain.Session, q domain.Quiz, now time.Time) (domain.EventSessionCompleted, error) {
	answers, err := tx.ListAnswers(ctx, ss.SessionID)
	if err != nil {
		return domain.EventSessionCompleted{}, err
	}

	res := score.Compute(q.Questions, answers)

	ok, err := tx.CompleteSession(ctx, ss.SessionID, now, res.Score)
	if err != nil {
		return domain.EventSessionCompleted{}, err
	}
	if !ok {
		return domain.EventSessionCompleted{}, errors.State("session already completed: session=%s", ss.SessionID)
	}

	ss.CompleteTime = &now
	ss.Score = &res.Score

	return domain.EventSessionCompleted{
		Session:   ss,
		QuizTitle: q.Title,
		CreatorID: q.CreatorID,
	}, nil
}

// participantSession locks the session row for the rest of the transaction. Only the
// participant may change it; anonymous attempts are addressed by their ID alone.
func (s *Service) participantSession(ctx context.Context, tx store.Tx, viewer domain.Viewer, sessionID string) (domain.Session, error) {
	ss, err := tx.GetSession(ctx, sessionID, true)
	if stderrors.Is(err, store.ErrNotFound) {
		return domain.Session{}, errors.NotFound("session not found: session=%s", sessionID)
	}
	if err != nil {
		return domain.Session{}, err
	}

	if ss.UserID != viewer.UserID {
		return domain.Session{}, errors.Permission("session belongs to another user: session=%s", sessionID)
	}

	return ss, nil
}

func quizWithQuestions(ctx context.Context, tx store.Tx, quizID string) (domain.Quiz, error) {
	q, err := tx.GetQuiz(ctx, quizID)
	if stderrors.Is(err, store.ErrNotFound) {
		return domain.Quiz{}, errors.NotFound("quiz not found: quiz=%s", quizID)
	}
	if err != nil {
		return domain.Quiz{}, err
	}

	if q.Questions, err = tx.ListQuestions(ctx, quizID); err != nil {
		return domain.Quiz{}, err
	}

	return q, nil
}
