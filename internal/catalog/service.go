// Package catalog owns quizzes, their questions and choices.
package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/victornm/quizshare/internal/access"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/store"
)

type Config struct {
	Store store.Store
	// Now defaults to time.Now.
	Now func() time.Time
	// NewShareCode defaults to NewShareCode.
	NewShareCode func() (string, error)
	// ShareCodeAttempts bounds regeneration after a share code collision.
	ShareCodeAttempts int
	// AllowEditsDuringAttempts disables the check that rejects question and choice
	// edits while the quiz has attempts in progress.
	AllowEditsDuringAttempts bool
}

type Service struct {
	store        store.Store
	now          func() time.Time
	newShareCode func() (string, error)
	attempts     int
	allowEdits   bool
	validate     *validator.Validate
}

func NewService(c Config) *Service {
	s := &Service{
		store:        c.Store,
		now:          c.Now,
		newShareCode: c.NewShareCode,
		attempts:     c.ShareCodeAttempts,
		allowEdits:   c.AllowEditsDuringAttempts,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.newShareCode == nil {
		s.newShareCode = NewShareCode
	}
	if s.attempts <= 0 {
		s.attempts = defaultShareCodeAttempts
	}

	return s
}

// AuthorizeTx loads the quiz and evaluates the viewer's access to it inside tx.
func AuthorizeTx(ctx context.Context, tx store.Tx, viewer domain.Viewer, quizID string) (domain.Quiz, access.Access, error) {
	q, err := tx.GetQuiz(ctx, quizID)
	if stderrors.Is(err, store.ErrNotFound) {
		return domain.Quiz{}, access.Access{}, errors.NotFound("quiz not found: quiz=%s", quizID)
	}
	if err != nil {
		return domain.Quiz{}, access.Access{}, err
	}

	a, err := accessTo(ctx, tx, q, viewer)
	return q, a, err
}

func accessTo(ctx context.Context, tx store.Tx, q domain.Quiz, viewer domain.Viewer) (access.Access, error) {
	if viewer.IsAnonymous() || viewer.UserID == q.CreatorID {
		return access.Evaluate(q, viewer, nil), nil
	}

	sh, err := tx.GetShare(ctx, q.QuizID, viewer.UserID)
	if stderrors.Is(err, store.ErrNotFound) {
		return access.Evaluate(q, viewer, nil), nil
	}
	if err != nil {
		return access.Access{}, err
	}

	return access.Evaluate(q, viewer, &sh), nil
}

// Authorize returns the quiz with the viewer's effective access to it.
func (s *Service) Authorize(ctx context.Context, viewer domain.Viewer, quizID string) (domain.Quiz, access.Access, error) {
	var (
		q domain.Quiz
		a access.Access
	)
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		q, a, err = AuthorizeTx(ctx, tx, viewer, quizID)
		return err
	})
	return q, a, err
}

func requireUser(viewer domain.Viewer) error {
	if viewer.IsAnonymous() {
		return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}
	return nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

func normalizeDuration(minutes int) (int, error) {
	switch {
	case minutes < 0:
		return 0, errors.Validation("duration must be positive: duration_minutes=%d", minutes)
	case minutes == 0:
		return domain.DefaultDurationMinutes, nil
	default:
		return minutes, nil
	}
}

type CreateQuizRequest struct {
	Viewer                 domain.Viewer
	Title                  string
	Description            string
	DurationMinutes        int
	IsPublic               bool
	AllowAnonymousAttempts bool
}

// CreateQuiz creates an empty quiz owned by the viewer, with a fresh share code.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	if err := requireUser(req.Viewer); err != nil {
		return nil, err
	}

	q, err := s.newQuiz(req)
	if err != nil {
		return nil, err
	}

	if err := s.insertQuiz(ctx, &q, nil); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "catalog: quiz created", "quiz", q.QuizID, "creator", q.CreatorID)
	return &q, nil
}

func (s *Service) newQuiz(req CreateQuizRequest) (domain.Quiz, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Quiz{}, errors.Validation("title is required")
	}

	duration, err := normalizeDuration(req.DurationMinutes)
	if err != nil {
		return domain.Quiz{}, err
	}

	id, err := newID()
	if err != nil {
		return domain.Quiz{}, err
	}

	now := s.now()
	return domain.Quiz{
		QuizID:                 id,
		Title:                  title,
		Description:            req.Description,
		CreatorID:              req.Viewer.UserID,
		DurationMinutes:        duration,
		IsPublic:               req.IsPublic,
		AllowAnonymousAttempts: req.AllowAnonymousAttempts,
		CreateTime:             now,
		UpdateTime:             now,
	}, nil
}

// insertQuiz stores q and runs fill in the same transaction. A share code collision
// restarts the whole transaction with a new code.
func (s *Service) insertQuiz(ctx context.Context, q *domain.Quiz, fill func(tx store.Tx) error) error {
	for i := 0; i < s.attempts; i++ {
		code, err := s.newShareCode()
		if err != nil {
			return err
		}
		q.ShareCode = code

		err = s.store.Update(ctx, func(tx store.Tx) error {
			if _, err := tx.GetQuizByShareCode(ctx, code); err == nil {
				return store.ErrConflict
			} else if !stderrors.Is(err, store.ErrNotFound) {
				return err
			}

			if err := tx.InsertQuiz(ctx, *q); err != nil {
				return err
			}

			if fill == nil {
				return nil
			}
			return fill(tx)
		})
		if stderrors.Is(err, store.ErrConflict) {
			slog.WarnContext(ctx, "catalog: share code collision", "attempt", i+1)
			continue
		}

		return err
	}

	return errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("could not allocate a unique share code after %d attempts", s.attempts))
}

type GetQuizRequest struct {
	Viewer domain.Viewer
	QuizID string
}

// QuizDetail is a quiz with its questions and the viewer's access to it.
type QuizDetail struct {
	Quiz   domain.Quiz
	Access access.Access
}

func (s *Service) GetQuiz(ctx context.Context, req GetQuizRequest) (*QuizDetail, error) {
	var d QuizDetail
	err := s.store.View(ctx, func(tx store.Tx) error {
		q, a, err := AuthorizeTx(ctx, tx, req.Viewer, req.QuizID)
		if err != nil {
			return err
		}

		d, err = s.detail(ctx, tx, q, a)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &d, nil
}

type GetQuizByShareCodeRequest struct {
	Viewer domain.Viewer
	Code   string
}

// GetQuizByShareCode resolves a share code. The code locates the quiz; the viewer
// still needs view access to it.
func (s *Service) GetQuizByShareCode(ctx context.Context, req GetQuizByShareCodeRequest) (*QuizDetail, error) {
	var d QuizDetail
	err := s.store.View(ctx, func(tx store.Tx) error {
		q, err := tx.GetQuizByShareCode(ctx, strings.TrimSpace(req.Code))
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NotFound("quiz not found: code=%s", req.Code)
		}
		if err != nil {
			return err
		}

		a, err := accessTo(ctx, tx, q, req.Viewer)
		if err != nil {
			return err
		}

		d, err = s.detail(ctx, tx, q, a)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &d, nil
}

func (s *Service) detail(ctx context.Context, tx store.Tx, q domain.Quiz, a access.Access) (QuizDetail, error) {
	if !a.CanView() {
		return QuizDetail{}, errors.Permission("no access to quiz: quiz=%s", q.QuizID)
	}

	qs, err := tx.ListQuestions(ctx, q.QuizID)
	if err != nil {
		return QuizDetail{}, err
	}
	q.Questions = qs

	return QuizDetail{Quiz: q, Access: a}, nil
}

type ListQuizzesRequest struct {
	Viewer domain.Viewer
}

// ListQuizzes returns public quizzes, plus the viewer's own and those shared with them.
func (s *Service) ListQuizzes(ctx context.Context, req ListQuizzesRequest) ([]domain.Quiz, error) {
	f := store.QuizFilter{
		Public:     true,
		CreatorID:  req.Viewer.UserID,
		SharedWith: req.Viewer.UserID,
	}

	return s.listQuizzes(ctx, f)
}

func (s *Service) ListSharedWithMe(ctx context.Context, req ListQuizzesRequest) ([]domain.Quiz, error) {
	if err := requireUser(req.Viewer); err != nil {
		return nil, err
	}

	return s.listQuizzes(ctx, store.QuizFilter{SharedWith: req.Viewer.UserID})
}

func (s *Service) listQuizzes(ctx context.Context, f store.QuizFilter) ([]domain.Quiz, error) {
	var qs []domain.Quiz
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		qs, err = tx.ListQuizzes(ctx, f)
		return err
	})
	return qs, err
}

type UpdateQuizRequest struct {
	Viewer                 domain.Viewer
	QuizID                 string
	Title                  *string
	Description            *string
	DurationMinutes        *int
	IsPublic               *bool
	AllowAnonymousAttempts *bool
}

// UpdateQuiz changes the fields that are set. The share code and creator never change.
func (s *Service) UpdateQuiz(ctx context.Context, req UpdateQuizRequest) (*domain.Quiz, error) {
	var q domain.Quiz
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var (
			a   access.Access
			err error
		)
		q, a, err = AuthorizeTx(ctx, tx, req.Viewer, req.QuizID)
		if err != nil {
			return err
		}
		if !a.CanEdit() {
			return errors.Permission("no edit access to quiz: quiz=%s", q.QuizID)
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return errors.Validation("title is required")
			}
			q.Title = title
		}
		if req.Description != nil {
			q.Description = *req.Description
		}
		if req.DurationMinutes != nil {
			d, err := normalizeDuration(*req.DurationMinutes)
			if err != nil {
				return err
			}
			q.DurationMinutes = d
		}
		if req.IsPublic != nil {
			q.IsPublic = *req.IsPublic
		}
		if req.AllowAnonymousAttempts != nil {
			q.AllowAnonymousAttempts = *req.AllowAnonymousAttempts
		}
		q.UpdateTime = s.now()

		return tx.UpdateQuiz(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	return &q, nil
}

type DeleteQuizRequest struct {
	Viewer domain.Viewer
	QuizID string
}

// DeleteQuiz removes the quiz with its questions, choices, sessions, answers and shares.
func (s *Service) DeleteQuiz(ctx context.Context, req DeleteQuizRequest) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		_, a, err := AuthorizeTx(ctx, tx, req.Viewer, req.QuizID)
		if err != nil {
			return err
		}
		if !a.CanDelete() {
			return errors.Permission("only the creator may delete a quiz: quiz=%s", req.QuizID)
		}

		return tx.DeleteQuiz(ctx, req.QuizID)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "catalog: quiz deleted", "quiz", req.QuizID)
	return nil
}
