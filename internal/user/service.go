// Package user registers accounts, checks passwords and issues the bearer tokens
// that identify a viewer.
package user

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/store"
)

type Config struct {
	Store  store.Store
	Tokens *TokenIssuer
	Now    func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Service struct {
	store    store.Store
	tokens   *TokenIssuer
	now      func() time.Time
	cost     int
	validate *validator.Validate
}

func NewService(c Config) *Service {
	s := &Service{
		store:    c.Store,
		tokens:   c.Tokens,
		now:      c.Now,
		cost:     c.BcryptCost,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}

	return s
}

type RegisterRequest struct {
	Username        string `validate:"required,max=150,excludesall=@ "`
	Email           string `validate:"omitempty,email"`
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
	FirstName       string `validate:"max=150"`
	LastName        string `validate:"max=150"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid registration: %s", describe(err)),
			errors.WithCause(err),
		)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	u := domain.User{
		UserID:       id.String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreateTime:   s.now(),
	}

	err = s.store.Update(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, u)
	})
	if stderrors.Is(err, store.ErrConflict) {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("username or email already taken: username=%s", u.Username),
			errors.WithCause(err),
		)
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user: registered", "user", u.UserID)
	return &u, nil
}

type LoginRequest struct {
	// Identifier is a username, or an email when it contains "@".
	Identifier string
	Password   string
}

type Token struct {
	AccessToken string
	ExpireTime  time.Time
}

// Login checks the credentials and issues an access token. Unknown users and wrong
// passwords are reported the same way.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Token, error) {
	unauthenticated := errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid credentials"))

	var u domain.User
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		u, err = tx.FindUser(ctx, strings.TrimSpace(req.Identifier))
		return err
	})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, unauthenticated
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, unauthenticated
	}

	tok, exp, err := s.tokens.Issue(u.UserID)
	if err != nil {
		return nil, err
	}

	return &Token{AccessToken: tok, ExpireTime: exp}, nil
}

// Authenticate turns a bearer token into a viewer.
func (s *Service) Authenticate(token string) (domain.Viewer, error) {
	return s.tokens.Verify(token)
}

type GetProfileRequest struct {
	Viewer domain.Viewer
}

func (s *Service) GetProfile(ctx context.Context, req GetProfileRequest) (*domain.User, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	var u domain.User
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		u, err = tx.GetUser(ctx, req.Viewer.UserID)
		return err
	})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound("user not found: user=%s", req.Viewer.UserID)
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

type UpdateProfileRequest struct {
	Viewer    domain.Viewer
	Email     *string `validate:"omitempty,email"`
	FirstName *string `validate:"omitempty,max=150"`
	LastName  *string `validate:"omitempty,max=150"`
}

func (s *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*domain.User, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}
	if req.Email != nil {
		e := strings.TrimSpace(*req.Email)
		req.Email = &e
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid profile: %s", describe(err)),
			errors.WithCause(err),
		)
	}

	var u domain.User
	err := s.store.Update(ctx, func(tx store.Tx) (err error) {
		if u, err = tx.GetUser(ctx, req.Viewer.UserID); err != nil {
			return err
		}

		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}

		return tx.UpdateUser(ctx, u)
	})
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return nil, errors.NotFound("user not found: user=%s", req.Viewer.UserID)
	case stderrors.Is(err, store.ErrConflict):
		return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("email already taken"), errors.WithCause(err))
	case err != nil:
		return nil, err
	}

	return &u, nil
}

// FindUser resolves a username, or an email when the identifier contains "@".
func (s *Service) FindUser(ctx context.Context, identifier string) (*domain.User, error) {
	var u domain.User
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		u, err = tx.FindUser(ctx, strings.TrimSpace(identifier))
		return err
	})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound("user not found: identifier=%s", identifier)
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return err.Error()
	}

	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}
