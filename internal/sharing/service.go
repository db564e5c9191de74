// Package sharing keeps per-user share records for quizzes.
package sharing

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
	"github.com/victornm/quizshare/internal/store"
)

type Config struct {
	Store store.Store
	Now   func() time.Time
}

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store: c.Store,
		now:   c.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type ShareRequest struct {
	Granter    domain.Viewer
	QuizID     string
	GranteeID  string
	Permission domain.Permission
}

// CreateOrUpdateShare grants the grantee access to the quiz. Sharing again with the
// same grantee only changes the permission.
func (s *Service) CreateOrUpdateShare(ctx context.Context, req ShareRequest) (*domain.Share, error) {
	if req.Granter.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	if req.Permission == "" {
		req.Permission = domain.PermissionAttempt
	}
	if !req.Permission.Valid() {
		return nil, errors.Validation("invalid permission: %s", req.Permission)
	}
	if req.GranteeID == "" {
		return nil, errors.Validation("recipient is required")
	}
	if req.Granter.UserID == req.GranteeID {
		return nil, errors.Validation("cannot share a quiz with yourself")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate share ID: %w", err)
	}

	var res domain.Share
	err = s.store.Update(ctx, func(tx store.Tx) error {
		q, err := tx.GetQuiz(ctx, req.QuizID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NotFound("quiz not found: quiz=%s", req.QuizID)
		}
		if err != nil {
			return err
		}

		ok, err := mayShare(ctx, tx, q, req.Granter.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Permission("only the creator or an editor may share: quiz=%s", q.QuizID)
		}

		if _, err := tx.GetUser(ctx, req.GranteeID); stderrors.Is(err, store.ErrNotFound) {
			return errors.NotFound("recipient not found: user=%s", req.GranteeID)
		} else if err != nil {
			return err
		}

		res, err = tx.UpsertShare(ctx, domain.Share{
			ShareID:    id.String(),
			QuizID:     q.QuizID,
			GranterID:  req.Granter.UserID,
			GranteeID:  req.GranteeID,
			Permission: req.Permission,
			ShareTime:  s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "sharing: quiz shared",
		"quiz", res.QuizID,
		"grantee", res.GranteeID,
		"permission", res.Permission,
	)

	return &res, nil
}

// mayShare reports whether userID created the quiz or holds an edit share on it.
// Quiz visibility does not matter here.
func mayShare(ctx context.Context, tx store.Tx, q domain.Quiz, userID string) (bool, error) {
	if q.CreatorID == userID {
		return true, nil
	}

	sh, err := tx.GetShare(ctx, q.QuizID, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return sh.Permission == domain.PermissionEdit, nil
}

type ListRequest struct {
	Viewer domain.Viewer
}

// ListSent returns the shares the viewer granted.
func (s *Service) ListSent(ctx context.Context, req ListRequest) ([]domain.Share, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	return s.list(ctx, store.ShareFilter{GranterID: req.Viewer.UserID})
}

// ListReceived returns the shares granted to the viewer.
func (s *Service) ListReceived(ctx context.Context, req ListRequest) ([]domain.Share, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	return s.list(ctx, store.ShareFilter{GranteeID: req.Viewer.UserID})
}

type ListForQuizRequest struct {
	Viewer domain.Viewer
	QuizID string
}

// ListForQuiz returns every share of a quiz. Only its creator may see them.
func (s *Service) ListForQuiz(ctx context.Context, req ListForQuizRequest) ([]domain.Share, error) {
	var res []domain.Share
	err := s.store.View(ctx, func(tx store.Tx) error {
		q, _, err := catalog.AuthorizeTx(ctx, tx, req.Viewer, req.QuizID)
		if err != nil {
			return err
		}
		if req.Viewer.IsAnonymous() || q.CreatorID != req.Viewer.UserID {
			return errors.Permission("only the creator may list shares: quiz=%s", q.QuizID)
		}

		res, err = tx.ListShares(ctx, store.ShareFilter{QuizID: q.QuizID})
		return err
	})
	return res, err
}

func (s *Service) list(ctx context.Context, f store.ShareFilter) ([]domain.Share, error) {
	var res []domain.Share
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		res, err = tx.ListShares(ctx, f)
		return err
	})
	return res, err
}
