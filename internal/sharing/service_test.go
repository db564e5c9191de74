package sharing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/sharing"
	"github.com/victornm/quizshare/internal/store"
	"github.com/victornm/quizshare/internal/store/memory"
)

var base = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

const quizID = "quiz-1"

func TestService_CreateOrUpdateShare(t *testing.T) {
	type outputs struct {
		share *domain.Share
		err   error
	}

	tests := map[string]struct {
		arrange func(t *testing.T, st store.Store) sharing.ShareRequest
		assert  func(t *testing.T, out outputs)
	}{
		"creator shares with default permission": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Authenticated("creator"), QuizID: quizID, GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, domain.PermissionAttempt, out.share.Permission)
				assert.Equal(t, "creator", out.share.GranterID)
				assert.True(t, base.Equal(out.share.ShareTime))
			},
		},

		"sharing with yourself is rejected": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Authenticated("creator"), QuizID: quizID, GranteeID: "creator"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodeInvalidArgument))
			},
		},

		"unknown permission is rejected": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Authenticated("creator"), QuizID: quizID, GranteeID: "alice", Permission: "own"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodeInvalidArgument))
			},
		},

		"unknown recipient is not found": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Authenticated("creator"), QuizID: quizID, GranteeID: "nobody"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodeNotFound))
			},
		},

		"unknown quiz is not found": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Authenticated("creator"), QuizID: "missing", GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodeNotFound))
			},
		},

		"a stranger may not share": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Authenticated("bob"), QuizID: quizID, GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodePermissionDenied))
			},
		},

		"an attempt share holder may not re-share": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				grant(t, st, "bob", domain.PermissionAttempt)
				return sharing.ShareRequest{Granter: domain.Authenticated("bob"), QuizID: quizID, GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodePermissionDenied))
			},
		},

		"an edit share holder may re-share": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				grant(t, st, "bob", domain.PermissionEdit)
				return sharing.ShareRequest{Granter: domain.Authenticated("bob"), QuizID: quizID, GranteeID: "alice", Permission: domain.PermissionView}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, "bob", out.share.GranterID)
				assert.Equal(t, domain.PermissionView, out.share.Permission)
			},
		},

		"an edit share holder may re-share a public quiz": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				grant(t, st, "bob", domain.PermissionEdit)
				setPublic(t, st)
				return sharing.ShareRequest{Granter: domain.Authenticated("bob"), QuizID: quizID, GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, "bob", out.share.GranterID)
				assert.Equal(t, domain.PermissionAttempt, out.share.Permission)
			},
		},

		"a view share holder may not re-share a public quiz": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				grant(t, st, "bob", domain.PermissionView)
				setPublic(t, st)
				return sharing.ShareRequest{Granter: domain.Authenticated("bob"), QuizID: quizID, GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodePermissionDenied))
			},
		},

		"anonymous may not share": {
			arrange: func(t *testing.T, st store.Store) sharing.ShareRequest {
				return sharing.ShareRequest{Granter: domain.Anonymous, QuizID: quizID, GranteeID: "alice"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodeUnauthenticated))
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, st := makeService(t)
			req := tt.arrange(t, st)
			sh, err := s.CreateOrUpdateShare(context.Background(), req)
			tt.assert(t, outputs{share: sh, err: err})
		})
	}
}

func TestService_ReshareUpdatesPermission(t *testing.T) {
	s, _ := makeService(t)
	ctx := context.Background()
	creator := domain.Authenticated("creator")

	first, err := s.CreateOrUpdateShare(ctx, sharing.ShareRequest{Granter: creator, QuizID: quizID, GranteeID: "alice", Permission: domain.PermissionView})
	require.NoError(t, err)
	second, err := s.CreateOrUpdateShare(ctx, sharing.ShareRequest{Granter: creator, QuizID: quizID, GranteeID: "alice", Permission: domain.PermissionEdit})
	require.NoError(t, err)

	assert.Equal(t, first.ShareID, second.ShareID)
	assert.Equal(t, domain.PermissionEdit, second.Permission)

	received, err := s.ListReceived(ctx, sharing.ListRequest{Viewer: domain.Authenticated("alice")})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, domain.PermissionEdit, received[0].Permission)
}

func TestService_Lists(t *testing.T) {
	s, _ := makeService(t)
	ctx := context.Background()
	creator := domain.Authenticated("creator")

	for _, u := range []string{"alice", "bob"} {
		_, err := s.CreateOrUpdateShare(ctx, sharing.ShareRequest{Granter: creator, QuizID: quizID, GranteeID: u})
		require.NoError(t, err)
	}

	sent, err := s.ListSent(ctx, sharing.ListRequest{Viewer: creator})
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	received, err := s.ListReceived(ctx, sharing.ListRequest{Viewer: domain.Authenticated("bob")})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "bob", received[0].GranteeID)

	forQuiz, err := s.ListForQuiz(ctx, sharing.ListForQuizRequest{Viewer: creator, QuizID: quizID})
	require.NoError(t, err)
	assert.Len(t, forQuiz, 2)

	_, err = s.ListForQuiz(ctx, sharing.ListForQuizRequest{Viewer: domain.Authenticated("alice"), QuizID: quizID})
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	_, err = s.ListSent(ctx, sharing.ListRequest{Viewer: domain.Anonymous})
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))
}

func makeService(t *testing.T) (*sharing.Service, store.Store) {
	t.Helper()

	st := memory.New()
	ctx := context.Background()
	err := st.Update(ctx, func(tx store.Tx) error {
		for _, u := range []string{"creator", "alice", "bob"} {
			if err := tx.InsertUser(ctx, domain.User{UserID: u, Username: u, Email: u + "@example.com", CreateTime: base}); err != nil {
				return err
			}
		}
		return tx.InsertQuiz(ctx, domain.Quiz{QuizID: quizID, Title: "Capitals", CreatorID: "creator", DurationMinutes: 10, ShareCode: "abcd1234", CreateTime: base, UpdateTime: base})
	})
	require.NoError(t, err)

	return sharing.NewService(sharing.Config{
		Store: st,
		Now:   func() time.Time { return base },
	}), st
}

func grant(t *testing.T, st store.Store, userID string, p domain.Permission) {
	t.Helper()

	ctx := context.Background()
	err := st.Update(ctx, func(tx store.Tx) error {
		_, err := tx.UpsertShare(ctx, domain.Share{ShareID: "seed-" + userID, QuizID: quizID, GranterID: "creator", GranteeID: userID, Permission: p, ShareTime: base})
		return err
	})
	require.NoError(t, err)
}

func setPublic(t *testing.T, st store.Store) {
	t.Helper()

	ctx := context.Background()
	err := st.Update(ctx, func(tx store.Tx) error {
		q, err := tx.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		q.IsPublic = true
		return tx.UpdateQuiz(ctx, q)
	})
	require.NoError(t, err)
}
