// Package store defines the persistence contract shared by the Postgres and
// in-memory implementations.
package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizshare/internal/domain"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = stderrors.New("store: not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = stderrors.New("store: conflict")
)

// Store runs blocks of work atomically. Update blocks are serialized against
// other writers touching the same rows and roll back when fn returns an error.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of record operations available inside a block.
type Tx interface {
	InsertUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	// FindUser looks a user up by username or email.
	FindUser(ctx context.Context, identifier string) (domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) error

	InsertQuiz(ctx context.Context, q domain.Quiz) error
	// GetQuiz returns the quiz without questions.
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, q domain.Quiz) error
	// DeleteQuiz removes the quiz and everything it owns.
	DeleteQuiz(ctx context.Context, quizID string) error
	ListQuizzes(ctx context.Context, f QuizFilter) ([]domain.Quiz, error)

	InsertQuestion(ctx context.Context, q domain.Question) error
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, questionID string) error
	// ListQuestions returns the quiz's questions with their choices, both sorted.
	ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	CountQuestions(ctx context.Context, quizID string) (int, error)

	InsertChoice(ctx context.Context, c domain.Choice) error
	GetChoice(ctx context.Context, choiceID string) (domain.Choice, error)
	UpdateChoice(ctx context.Context, c domain.Choice) error
	DeleteChoice(ctx context.Context, choiceID string) error
	ListChoices(ctx context.Context, questionID string) ([]domain.Choice, error)

	// UpsertShare inserts the share or, when (quiz, grantee) exists, updates its
	// permission. The stored record is returned.
	UpsertShare(ctx context.Context, s domain.Share) (domain.Share, error)
	GetShare(ctx context.Context, quizID, granteeID string) (domain.Share, error)
	ListShares(ctx context.Context, f ShareFilter) ([]domain.Share, error)

	InsertSession(ctx context.Context, s domain.Session) error
	// GetSession with forUpdate locks the row until the block ends.
	GetSession(ctx context.Context, sessionID string, forUpdate bool) (domain.Session, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]domain.Session, error)
	// CompleteSession sets completion time and score only when the session is not
	// completed yet, and reports whether it did.
	CompleteSession(ctx context.Context, sessionID string, at time.Time, score decimal.Decimal) (bool, error)

	// UpsertAnswer inserts the answer or replaces the choice of the existing
	// answer for (session, question). The stored record is returned.
	UpsertAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error)
	ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error)

	InsertUpload(ctx context.Context, u domain.ImageUpload) error
	GetUpload(ctx context.Context, uploadID string) (domain.ImageUpload, error)
	UpdateUpload(ctx context.Context, u domain.ImageUpload) error
}

// QuizFilter selects quizzes matching any of the set conditions. An empty filter
// matches nothing.
type QuizFilter struct {
	Public     bool
	CreatorID  string
	SharedWith string
}

// ShareFilter selects shares matching all of the set fields.
type ShareFilter struct {
	QuizID    string
	GranterID string
	GranteeID string
}

// SessionFilter selects sessions. UserID and QuizCreatorID are OR-ed when set;
// QuizID and OpenOnly further restrict the result. Results are ordered newest first.
type SessionFilter struct {
	UserID        string
	QuizCreatorID string
	QuizID        string
	OpenOnly      bool
}
