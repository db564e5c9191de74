package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDurationMinutes is the time limit a quiz gets when none is supplied.
const DefaultDurationMinutes = 10

type User struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreateTime   time.Time
}

// Viewer is whoever is looking at a quiz: either anonymous or an authenticated user.
type Viewer struct {
	UserID string
}

var Anonymous = Viewer{}

func Authenticated(userID string) Viewer {
	return Viewer{UserID: userID}
}

func (v Viewer) IsAnonymous() bool {
	return v.UserID == ""
}

// Quiz owns an ordered list of questions. ShareCode is assigned once at creation.
type Quiz struct {
	QuizID                 string
	Title                  string
	Description            string
	CreatorID              string
	DurationMinutes        int
	IsPublic               bool
	AllowAnonymousAttempts bool
	ShareCode              string
	CreateTime             time.Time
	UpdateTime             time.Time

	Questions []Question
}

func (q Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// Question lookups by ID, for validating answers against the quiz snapshot.
func (q Quiz) Question(id string) (Question, bool) {
	for _, qs := range q.Questions {
		if qs.QuestionID == id {
			return qs, true
		}
	}
	return Question{}, false
}

type Question struct {
	QuestionID string
	QuizID     string
	Text       string
	Order      int
	CreateTime time.Time

	Choices []Choice
}

func (q Question) Choice(id string) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ChoiceID == id {
			return c, true
		}
	}
	return Choice{}, false
}

type Choice struct {
	ChoiceID   string
	QuestionID string
	Text       string
	IsCorrect  bool
	Order      int
	CreateTime time.Time
}

// SortQuestions orders questions by Order, ties broken by creation sequence.
func SortQuestions(qs []Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		a, b := qs[i], qs[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreateTime.Equal(b.CreateTime) {
			return a.CreateTime.Before(b.CreateTime)
		}
		return a.QuestionID < b.QuestionID
	})
}

func SortChoices(cs []Choice) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreateTime.Equal(b.CreateTime) {
			return a.CreateTime.Before(b.CreateTime)
		}
		return a.ChoiceID < b.ChoiceID
	})
}

type Permission string

const (
	PermissionView    Permission = "view"
	PermissionAttempt Permission = "attempt"
	PermissionEdit    Permission = "edit"
)

func (p Permission) Valid() bool {
	switch p {
	case PermissionView, PermissionAttempt, PermissionEdit:
		return true
	}
	return false
}

// Share grants a user access to a quiz. There is at most one share per (quiz, grantee).
type Share struct {
	ShareID    string
	QuizID     string
	GranterID  string
	GranteeID  string
	Permission Permission
	ShareTime  time.Time
}

type SessionState string

const (
	SessionInProgress SessionState = "in_progress"
	SessionTimedOut   SessionState = "timed_out"
	SessionCompleted  SessionState = "completed"
)

// Session is one user's timed attempt on a quiz.
type Session struct {
	SessionID    string
	QuizID       string
	UserID       string
	StartTime    time.Time
	CompleteTime *time.Time
	Score        *decimal.Decimal
}

func (s Session) Completed() bool {
	return s.CompleteTime != nil
}

// TimedOut is never stored: it is recomputed from the clock on every read.
func (s Session) TimedOut(now time.Time, limit time.Duration) bool {
	return !s.Completed() && now.Sub(s.StartTime) > limit
}

func (s Session) State(now time.Time, limit time.Duration) SessionState {
	switch {
	case s.Completed():
		return SessionCompleted
	case s.TimedOut(now, limit):
		return SessionTimedOut
	default:
		return SessionInProgress
	}
}

// Answer is the selected choice for one question of a session. Correctness is
// derived from the choice when read.
type Answer struct {
	AnswerID   string
	SessionID  string
	QuestionID string
	ChoiceID   string
	AnswerTime time.Time
}

// ImageUpload holds an uploaded image and the outcome of the extraction call.
type ImageUpload struct {
	UploadID        string
	UserID          string
	ContentType     string
	Image           []byte
	UploadTime      time.Time
	Processed       bool
	ParsedData      []byte
	ExtractionError string
}
