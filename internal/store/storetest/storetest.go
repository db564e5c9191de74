// Package storetest holds the behaviour every store.Store implementation must
// share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/store"
)

// Run executes the conformance suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := map[string]func(t *testing.T, s store.Store){
		"user lookup by username or email":               testFindUser,
		"duplicate username conflicts":                   testDuplicateUser,
		"questions and choices are ordered":              testOrdering,
		"failed update leaves no trace":                  testRollback,
		"share upsert keeps granter and time":            testUpsertShare,
		"quiz listing unions public, created and shared": testListQuizzes,
		"answer upsert replaces the choice":              testUpsertAnswer,
		"session completes exactly once":                 testCompleteOnce,
		"concurrent completion has one winner":           testConcurrentComplete,
		"deleting a quiz cascades":                       testCascade,
		"session listing filters":                        testListSessions,
		"upload round trip":                              testUpload,
	}

	for name, fn := range tests {
		fn := fn
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

var base = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newID(t *testing.T) string {
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

type fixture struct {
	creator  domain.User
	player   domain.User
	quiz     domain.Quiz
	question domain.Question
	right    domain.Choice
	wrong    domain.Choice
}

func seed(t *testing.T, s store.Store) fixture {
	ctx := context.Background()
	f := fixture{
		creator: domain.User{UserID: newID(t), Username: "creator-" + newID(t)[:8], Email: newID(t)[:8] + "@creator.test", CreateTime: base},
		player:  domain.User{UserID: newID(t), Username: "player-" + newID(t)[:8], Email: newID(t)[:8] + "@player.test", CreateTime: base},
	}
	f.quiz = domain.Quiz{
		QuizID:          newID(t),
		Title:           "Capitals",
		CreatorID:       f.creator.UserID,
		DurationMinutes: 10,
		ShareCode:       newID(t)[:8],
		CreateTime:      base,
		UpdateTime:      base,
	}
	f.question = domain.Question{QuestionID: newID(t), QuizID: f.quiz.QuizID, Text: "Capital of France?", CreateTime: base}
	f.right = domain.Choice{ChoiceID: newID(t), QuestionID: f.question.QuestionID, Text: "Paris", IsCorrect: true, CreateTime: base}
	f.wrong = domain.Choice{ChoiceID: newID(t), QuestionID: f.question.QuestionID, Text: "Lyon", Order: 1, CreateTime: base}

	err := s.Update(ctx, func(tx store.Tx) error {
		for _, u := range []domain.User{f.creator, f.player} {
			if err := tx.InsertUser(ctx, u); err != nil {
				return err
			}
		}
		if err := tx.InsertQuiz(ctx, f.quiz); err != nil {
			return err
		}
		if err := tx.InsertQuestion(ctx, f.question); err != nil {
			return err
		}
		for _, c := range []domain.Choice{f.right, f.wrong} {
			if err := tx.InsertChoice(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	return f
}

func startSession(t *testing.T, s store.Store, f fixture) domain.Session {
	ss := domain.Session{SessionID: newID(t), QuizID: f.quiz.QuizID, UserID: f.player.UserID, StartTime: base}
	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.InsertSession(context.Background(), ss)
	})
	require.NoError(t, err)
	return ss
}

func testFindUser(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()

	err := s.View(ctx, func(tx store.Tx) error {
		u, err := tx.FindUser(ctx, f.player.Username)
		require.NoError(t, err)
		assert.Equal(t, f.player.UserID, u.UserID)

		u, err = tx.FindUser(ctx, f.player.Email)
		require.NoError(t, err)
		assert.Equal(t, f.player.UserID, u.UserID)

		_, err = tx.FindUser(ctx, "nobody")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func testDuplicateUser(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, domain.User{UserID: newID(t), Username: f.player.Username, Email: "other@player.test"})
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func testOrdering(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()

	second := domain.Question{QuestionID: newID(t), QuizID: f.quiz.QuizID, Text: "Second", Order: 2, CreateTime: base}
	first := domain.Question{QuestionID: newID(t), QuizID: f.quiz.QuizID, Text: "First", Order: 1, CreateTime: base.Add(time.Second)}
	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.InsertQuestion(ctx, second); err != nil {
			return err
		}
		return tx.InsertQuestion(ctx, first)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		qs, err := tx.ListQuestions(ctx, f.quiz.QuizID)
		require.NoError(t, err)
		require.Len(t, qs, 3)
		assert.Equal(t, []string{f.question.QuestionID, first.QuestionID, second.QuestionID},
			[]string{qs[0].QuestionID, qs[1].QuestionID, qs[2].QuestionID})

		require.Len(t, qs[0].Choices, 2)
		assert.Equal(t, f.right.ChoiceID, qs[0].Choices[0].ChoiceID)
		assert.Equal(t, f.wrong.ChoiceID, qs[0].Choices[1].ChoiceID)

		n, err := tx.CountQuestions(ctx, f.quiz.QuizID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()
	boom := stderrors.New("boom")

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.InsertQuestion(ctx, domain.Question{QuestionID: newID(t), QuizID: f.quiz.QuizID, Text: "lost", CreateTime: base}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(tx store.Tx) error {
		n, err := tx.CountQuestions(ctx, f.quiz.QuizID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}

func testUpsertShare(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()

	first := domain.Share{ShareID: newID(t), QuizID: f.quiz.QuizID, GranterID: f.creator.UserID, GranteeID: f.player.UserID, Permission: domain.PermissionView, ShareTime: base}
	again := domain.Share{ShareID: newID(t), QuizID: f.quiz.QuizID, GranterID: "someone-else", GranteeID: f.player.UserID, Permission: domain.PermissionEdit, ShareTime: base.Add(time.Hour)}

	var got domain.Share
	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.UpsertShare(ctx, first); err != nil {
			return err
		}
		var err error
		got, err = tx.UpsertShare(ctx, again)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, first.ShareID, got.ShareID)
	assert.Equal(t, f.creator.UserID, got.GranterID)
	assert.Equal(t, domain.PermissionEdit, got.Permission)
	assert.True(t, base.Equal(got.ShareTime))

	err = s.View(ctx, func(tx store.Tx) error {
		shares, err := tx.ListShares(ctx, store.ShareFilter{GranteeID: f.player.UserID})
		require.NoError(t, err)
		assert.Len(t, shares, 1)
		return nil
	})
	require.NoError(t, err)
}

func testListQuizzes(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()

	public := domain.Quiz{QuizID: newID(t), Title: "Public", CreatorID: f.creator.UserID, DurationMinutes: 10, IsPublic: true, ShareCode: newID(t)[:8], CreateTime: base, UpdateTime: base}
	hidden := domain.Quiz{QuizID: newID(t), Title: "Hidden", CreatorID: f.creator.UserID, DurationMinutes: 10, ShareCode: newID(t)[:8], CreateTime: base, UpdateTime: base}
	err := s.Update(ctx, func(tx store.Tx) error {
		for _, q := range []domain.Quiz{public, hidden} {
			if err := tx.InsertQuiz(ctx, q); err != nil {
				return err
			}
		}
		_, err := tx.UpsertShare(ctx, domain.Share{ShareID: newID(t), QuizID: f.quiz.QuizID, GranterID: f.creator.UserID, GranteeID: f.player.UserID, Permission: domain.PermissionAttempt, ShareTime: base})
		return err
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		qs, err := tx.ListQuizzes(ctx, store.QuizFilter{Public: true, CreatorID: f.player.UserID, SharedWith: f.player.UserID})
		require.NoError(t, err)
		var ids []string
		for _, q := range qs {
			ids = append(ids, q.QuizID)
		}
		assert.Contains(t, ids, public.QuizID)
		assert.Contains(t, ids, f.quiz.QuizID)
		assert.NotContains(t, ids, hidden.QuizID)

		qs, err = tx.ListQuizzes(ctx, store.QuizFilter{})
		require.NoError(t, err)
		assert.Empty(t, qs)

		q, err := tx.GetQuizByShareCode(ctx, hidden.ShareCode)
		require.NoError(t, err)
		assert.Equal(t, hidden.QuizID, q.QuizID)
		return nil
	})
	require.NoError(t, err)
}

func testUpsertAnswer(t *testing.T, s store.Store) {
	f := seed(t, s)
	ss := startSession(t, s, f)
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.UpsertAnswer(ctx, domain.Answer{AnswerID: newID(t), SessionID: ss.SessionID, QuestionID: f.question.QuestionID, ChoiceID: f.wrong.ChoiceID, AnswerTime: base}); err != nil {
			return err
		}
		_, err := tx.UpsertAnswer(ctx, domain.Answer{AnswerID: newID(t), SessionID: ss.SessionID, QuestionID: f.question.QuestionID, ChoiceID: f.right.ChoiceID, AnswerTime: base.Add(time.Second)})
		return err
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		as, err := tx.ListAnswers(ctx, ss.SessionID)
		require.NoError(t, err)
		require.Len(t, as, 1)
		assert.Equal(t, f.right.ChoiceID, as[0].ChoiceID)
		return nil
	})
	require.NoError(t, err)
}

func testCompleteOnce(t *testing.T, s store.Store) {
	f := seed(t, s)
	ss := startSession(t, s, f)
	ctx := context.Background()
	at := base.Add(time.Minute)

	for i, want := range []bool{true, false} {
		err := s.Update(ctx, func(tx store.Tx) error {
			ok, err := tx.CompleteSession(ctx, ss.SessionID, at.Add(time.Duration(i)*time.Minute), decimal.NewFromInt(50))
			require.NoError(t, err)
			assert.Equal(t, want, ok)
			return nil
		})
		require.NoError(t, err)
	}

	err := s.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetSession(ctx, ss.SessionID, false)
		require.NoError(t, err)
		require.True(t, got.Completed())
		assert.True(t, at.Equal(*got.CompleteTime))
		assert.True(t, decimal.NewFromInt(50).Equal(*got.Score))
		return nil
	})
	require.NoError(t, err)
}

func testConcurrentComplete(t *testing.T, s store.Store) {
	f := seed(t, s)
	ss := startSession(t, s, f)
	ctx := context.Background()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(tx store.Tx) error {
				cur, err := tx.GetSession(ctx, ss.SessionID, true)
				if err != nil || cur.Completed() {
					return err
				}
				ok, err := tx.CompleteSession(ctx, ss.SessionID, base.Add(time.Minute), decimal.Zero)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func testCascade(t *testing.T, s store.Store) {
	f := seed(t, s)
	ss := startSession(t, s, f)
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.UpsertAnswer(ctx, domain.Answer{AnswerID: newID(t), SessionID: ss.SessionID, QuestionID: f.question.QuestionID, ChoiceID: f.right.ChoiceID, AnswerTime: base}); err != nil {
			return err
		}
		if _, err := tx.UpsertShare(ctx, domain.Share{ShareID: newID(t), QuizID: f.quiz.QuizID, GranterID: f.creator.UserID, GranteeID: f.player.UserID, Permission: domain.PermissionView, ShareTime: base}); err != nil {
			return err
		}
		return tx.DeleteQuiz(ctx, f.quiz.QuizID)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetQuiz(ctx, f.quiz.QuizID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetQuestion(ctx, f.question.QuestionID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetChoice(ctx, f.right.ChoiceID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetSession(ctx, ss.SessionID, false)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetShare(ctx, f.quiz.QuizID, f.player.UserID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		as, err := tx.ListAnswers(ctx, ss.SessionID)
		require.NoError(t, err)
		assert.Empty(t, as)
		return nil
	})
	require.NoError(t, err)
}

func testListSessions(t *testing.T, s store.Store) {
	f := seed(t, s)
	open := startSession(t, s, f)
	done := startSession(t, s, f)
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.CompleteSession(ctx, done.SessionID, base.Add(time.Minute), decimal.Zero)
		return err
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		mine, err := tx.ListSessions(ctx, store.SessionFilter{UserID: f.player.UserID})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		created, err := tx.ListSessions(ctx, store.SessionFilter{QuizCreatorID: f.creator.UserID})
		require.NoError(t, err)
		assert.Len(t, created, 2)

		openOnly, err := tx.ListSessions(ctx, store.SessionFilter{UserID: f.player.UserID, QuizID: f.quiz.QuizID, OpenOnly: true})
		require.NoError(t, err)
		require.Len(t, openOnly, 1)
		assert.Equal(t, open.SessionID, openOnly[0].SessionID)

		none, err := tx.ListSessions(ctx, store.SessionFilter{UserID: newID(t)})
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
	require.NoError(t, err)
}

func testUpload(t *testing.T, s store.Store) {
	f := seed(t, s)
	ctx := context.Background()

	up := domain.ImageUpload{UploadID: newID(t), UserID: f.creator.UserID, ContentType: "image/jpeg", Image: []byte{0xff, 0xd8}, UploadTime: base}
	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.InsertUpload(ctx, up); err != nil {
			return err
		}
		up.Processed = true
		up.ParsedData = []byte(`{"questions":[]}`)
		return tx.UpdateUpload(ctx, up)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetUpload(ctx, up.UploadID)
		require.NoError(t, err)
		assert.True(t, got.Processed)
		assert.JSONEq(t, `{"questions":[]}`, string(got.ParsedData))
		assert.Equal(t, up.Image, got.Image)
		return nil
	})
	require.NoError(t, err)
}
