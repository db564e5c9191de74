// Package access decides what a viewer may do with a quiz.
package access

import (
	"github.com/victornm/quizshare/internal/domain"
)

type Level int

const (
	NoAccess Level = iota
	PublicView
	Owner
	Shared
	AnonymousAllowed
)

func (l Level) String() string {
	switch l {
	case PublicView:
		return "public-view"
	case Owner:
		return "owner"
	case Shared:
		return "shared"
	case AnonymousAllowed:
		return "anonymous-allowed"
	default:
		return "no-access"
	}
}

// Access is the effective access of one viewer to one quiz. Permission is only set
// when Level is Shared.
type Access struct {
	Level      Level
	Permission domain.Permission
}

// Evaluate applies the rules in order: creator, public, anonymous, share.
// share is the viewer's share record for the quiz, or nil when there is none.
func Evaluate(quiz domain.Quiz, viewer domain.Viewer, share *domain.Share) Access {
	switch {
	case !viewer.IsAnonymous() && viewer.UserID == quiz.CreatorID:
		return Access{Level: Owner}
	case quiz.IsPublic:
		return Access{Level: PublicView}
	case viewer.IsAnonymous() && quiz.AllowAnonymousAttempts:
		return Access{Level: AnonymousAllowed}
	case viewer.IsAnonymous():
		return Access{Level: NoAccess}
	case share != nil && share.QuizID == quiz.QuizID && share.GranteeID == viewer.UserID && share.Permission.Valid():
		return Access{Level: Shared, Permission: share.Permission}
	default:
		return Access{Level: NoAccess}
	}
}

// CanView reports whether the quiz and its questions may be read.
func (a Access) CanView() bool {
	switch a.Level {
	case Owner, PublicView, Shared, AnonymousAllowed:
		return true
	}
	return false
}

func (a Access) CanAttempt() bool {
	switch a.Level {
	case Owner, PublicView, AnonymousAllowed:
		return true
	case Shared:
		return a.Permission == domain.PermissionAttempt || a.Permission == domain.PermissionEdit
	}
	return false
}

func (a Access) CanEdit() bool {
	return a.Level == Owner || (a.Level == Shared && a.Permission == domain.PermissionEdit)
}

// CanShare is the same as CanEdit: editors may re-share.
func (a Access) CanShare() bool {
	return a.CanEdit()
}

func (a Access) CanDelete() bool {
	return a.Level == Owner
}

// CanSeeAnswers reports whether correctness flags may be shown.
func (a Access) CanSeeAnswers() bool {
	return a.CanEdit()
}

// CanList reports whether the quiz shows up in the viewer's listings. Anonymous
// attempt rights do not expose private quizzes in listings.
func (a Access) CanList() bool {
	return a.CanView() && a.Level != AnonymousAllowed
}
