package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"

	"github.com/victornm/quizshare/internal/api"
	"github.com/victornm/quizshare/internal/catalog"
	"github.com/victornm/quizshare/internal/event"
	"github.com/victornm/quizshare/internal/extraction"
	"github.com/victornm/quizshare/internal/leaderboard"
	"github.com/victornm/quizshare/internal/session"
	"github.com/victornm/quizshare/internal/sharelink"
	"github.com/victornm/quizshare/internal/sharing"
	"github.com/victornm/quizshare/internal/store/memory"
	"github.com/victornm/quizshare/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	t     *testing.T
	url   string
	clock *clock
	redis *redis.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	st := memory.New()
	eb := event.NewBus()

	tokens := user.NewTokenIssuer("test-secret", time.Hour)
	us := user.NewService(user.Config{Store: st, Tokens: tokens, BcryptCost: bcrypt.MinCost})
	cs := catalog.NewService(catalog.Config{Store: st, Now: clk.Now})
	ss := session.NewService(session.Config{Store: st, EventBus: eb, Now: clk.Now})

	a := api.New(api.Config{
		EventBus:   eb,
		Users:      us,
		Catalog:    cs,
		Sharing:    sharing.NewService(sharing.Config{Store: st, Now: clk.Now}),
		Sessions:   ss,
		Extraction: extraction.NewService(extraction.Config{Store: st, Catalog: cs, Now: clk.Now}),
		Leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: eb,
			Redis:    rdb,
			Store:    st,
			Prefix:   "test",
		}),
		ShareLinks:   sharelink.New("http://front.test", 128),
		Redis:        rdb,
		PubsubPrefix: "test",
	})

	e := gin.New()
	a.Register(e)

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		srv.Close()
		eb.Stop()
	})

	return &testServer{t: t, url: srv.URL, clock: clk, redis: rdb}
}

func (s *testServer) do(method, path, token string, body any) (int, []byte) {
	s.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, s.url+path, r)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)

	return resp.StatusCode, b
}

// call expects status and decodes the response into out when it is not nil.
func (s *testServer) call(method, path, token string, body any, status int, out any) {
	s.t.Helper()

	code, b := s.do(method, path, token, body)
	require.Equal(s.t, status, code, "%s %s: %s", method, path, b)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(b, out))
	}
}

// signup registers username and returns its user id and access token.
func (s *testServer) signup(username string) (string, string) {
	s.t.Helper()

	var u api.User
	s.call(http.MethodPost, "/api/register", "", map[string]any{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "password123",
		"password2": "password123",
	}, http.StatusCreated, &u)

	var tok struct {
		Access string `json:"access"`
	}
	s.call(http.MethodPost, "/api/token", "", map[string]any{
		"username": username,
		"password": "password123",
	}, http.StatusOK, &tok)

	return u.ID, tok.Access
}

type fixture struct {
	quiz      api.Quiz
	questions []api.Question
}

// createQuiz builds a quiz with two questions; the second choice of each is correct.
func (s *testServer) createQuiz(token string, public bool) fixture {
	s.t.Helper()

	var f fixture
	s.call(http.MethodPost, "/api/quizzes", token, map[string]any{
		"title":            "Capitals",
		"duration_minutes": 10,
		"is_public":        public,
	}, http.StatusCreated, &f.quiz)

	for i, text := range []string{"Capital of France?", "Capital of Japan?"} {
		var q api.Question
		s.call(http.MethodPost, fmt.Sprintf("/api/quizzes/%s/questions", f.quiz.ID), token,
			map[string]any{"text": text, "order": i}, http.StatusCreated, &q)

		for j, choice := range []string{"wrong", "right"} {
			var c api.Choice
			s.call(http.MethodPost, fmt.Sprintf("/api/questions/%s/choices", q.ID), token,
				map[string]any{"text": choice, "is_correct": j == 1, "order": j}, http.StatusCreated, &c)
			q.Choices = append(q.Choices, c)
		}

		f.questions = append(f.questions, q)
	}

	return f
}

type errorBody struct {
	Error struct {
		Code    uint32 `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, token := s.signup("alice")

	tests := map[string]struct {
		header string
		path   string
		want   int
	}{
		"anonymous can list": {
			path: "/api/quizzes",
			want: http.StatusOK,
		},
		"anonymous has no profile": {
			path: "/api/profile",
			want: http.StatusUnauthorized,
		},
		"valid token": {
			header: "Bearer " + token,
			path:   "/api/profile",
			want:   http.StatusOK,
		},
		"invalid token": {
			header: "Bearer not-a-token",
			path:   "/api/quizzes",
			want:   http.StatusUnauthorized,
		},
		"unsupported scheme": {
			header: "Basic YWxpY2U6cGFzcw==",
			path:   "/api/quizzes",
			want:   http.StatusUnauthorized,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, s.url+tc.path, nil)
			require.NoError(t, err)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRegisterErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.signup("alice")

	tests := map[string]struct {
		body     map[string]any
		want     int
		wantCode codes.Code
	}{
		"duplicate username": {
			body:     map[string]any{"username": "alice", "password": "password123", "password2": "password123"},
			want:     http.StatusConflict,
			wantCode: codes.AlreadyExists,
		},
		"password mismatch": {
			body:     map[string]any{"username": "bob", "password": "password123", "password2": "password124"},
			want:     http.StatusBadRequest,
			wantCode: codes.InvalidArgument,
		},
		"malformed body": {
			body:     nil,
			want:     http.StatusBadRequest,
			wantCode: codes.InvalidArgument,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			var body any
			if tc.body != nil {
				body = tc.body
			}

			code, b := s.do(http.MethodPost, "/api/register", "", body)
			assert.Equal(t, tc.want, code, string(b))

			var e errorBody
			require.NoError(t, json.Unmarshal(b, &e))
			assert.Equal(t, uint32(tc.wantCode), e.Error.Code)
			assert.NotEmpty(t, e.Error.Message)
		})
	}
}

func TestAttemptFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, alice := s.signup("alice")
	bobID, bob := s.signup("bob")
	f := s.createQuiz(alice, false)
	quizPath := "/api/quizzes/" + f.quiz.ID

	// private quiz, not shared yet
	s.call(http.MethodGet, quizPath, bob, nil, http.StatusForbidden, nil)

	var sh api.Share
	s.call(http.MethodPost, quizPath+"/share", alice, map[string]any{
		"shared_with": "bob@example.com",
		"permission":  "attempt",
	}, http.StatusCreated, &sh)
	assert.Equal(t, bobID, sh.GranteeID)
	assert.Equal(t, "attempt", sh.Permission)

	var owned api.Quiz
	s.call(http.MethodGet, quizPath, alice, nil, http.StatusOK, &owned)
	assert.Equal(t, "owner", owned.Access)
	require.Len(t, owned.Questions, 2)
	require.NotNil(t, owned.Questions[0].Choices[1].IsCorrect)
	assert.True(t, *owned.Questions[0].Choices[1].IsCorrect)

	var joined struct {
		Quiz    api.Quiz     `json:"quiz"`
		Session *api.Session `json:"session"`
		Resumed bool         `json:"resumed"`
	}
	s.call(http.MethodGet, "/api/join/"+f.quiz.ShareCode+"?auto_start=true", bob, nil, http.StatusOK, &joined)
	assert.Equal(t, "shared", joined.Quiz.Access)
	for _, q := range joined.Quiz.Questions {
		for _, c := range q.Choices {
			assert.Nil(t, c.IsCorrect, "correctness leaked to participant")
		}
	}
	require.NotNil(t, joined.Session)
	assert.False(t, joined.Resumed)

	var resumed struct {
		api.Session
		Resumed bool `json:"resumed"`
	}
	s.call(http.MethodPost, "/api/sessions", bob, map[string]any{"quiz_id": f.quiz.ID}, http.StatusOK, &resumed)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, joined.Session.ID, resumed.ID)

	sessionPath := "/api/sessions/" + resumed.ID
	q1, q2 := f.questions[0], f.questions[1]

	// structural edits are locked while the attempt is open
	s.call(http.MethodPut, fmt.Sprintf("%s/questions/%s", quizPath, q1.ID), alice,
		map[string]any{"text": "changed"}, http.StatusConflict, nil)

	s.call(http.MethodPost, sessionPath+"/submit-answer", bob,
		map[string]any{"question_id": q1.ID, "choice_id": q1.Choices[1].ID}, http.StatusOK, nil)
	s.call(http.MethodPost, sessionPath+"/submit-answer", bob,
		map[string]any{"question_id": q2.ID, "choice_id": q1.Choices[0].ID}, http.StatusBadRequest, nil)
	s.call(http.MethodPost, sessionPath+"/submit-answer", alice,
		map[string]any{"question_id": q2.ID, "choice_id": q2.Choices[0].ID}, http.StatusForbidden, nil)
	s.call(http.MethodPost, sessionPath+"/submit-answer", bob,
		map[string]any{"question_id": q2.ID, "choice_id": q2.Choices[0].ID}, http.StatusOK, nil)

	var detail api.Session
	s.call(http.MethodGet, sessionPath, alice, nil, http.StatusOK, &detail)
	assert.Equal(t, "in_progress", detail.State)
	assert.Len(t, detail.Answers, 2)
	require.NotNil(t, detail.Deadline)
	assert.Equal(t, s.clock.Now().Add(10*time.Minute), detail.Deadline.UTC())

	var res api.Result
	s.call(http.MethodPost, sessionPath+"/complete", bob, nil, http.StatusOK, &res)
	assert.Equal(t, 2, res.TotalQuestions)
	assert.Equal(t, 1, res.CorrectAnswers)
	assert.True(t, decimal.NewFromInt(50).Equal(res.Score), "score %s", res.Score)
	assert.Equal(t, "completed", res.Session.State)

	s.call(http.MethodPost, sessionPath+"/complete", bob, nil, http.StatusConflict, nil)

	var again api.Result
	s.call(http.MethodGet, sessionPath+"/result", alice, nil, http.StatusOK, &again)
	assert.True(t, res.Score.Equal(again.Score))
	require.Len(t, again.Answers, 2)

	var board api.Leaderboard
	require.Eventually(t, func() bool {
		s.call(http.MethodGet, quizPath+"/leaderboard", alice, nil, http.StatusOK, &board)
		return len(board.Entries) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, api.LeaderboardEntry{Rank: 1, UserID: bobID, Username: "bob", Score: 50}, board.Entries[0])
}

func TestSubmitAfterTimeout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, alice := s.signup("alice")
	f := s.createQuiz(alice, true)

	var ss api.Session
	s.call(http.MethodPost, "/api/sessions", alice, map[string]any{"quiz_id": f.quiz.ID}, http.StatusCreated, &ss)

	s.clock.Advance(11 * time.Minute)

	q := f.questions[0]
	code, b := s.do(http.MethodPost, "/api/sessions/"+ss.ID+"/submit-answer", alice,
		map[string]any{"question_id": q.ID, "choice_id": q.Choices[1].ID})
	assert.Equal(t, http.StatusGone, code, string(b))

	var res api.Result
	s.call(http.MethodGet, "/api/sessions/"+ss.ID+"/result", alice, nil, http.StatusOK, &res)
	assert.True(t, decimal.Zero.Equal(res.Score))
	assert.Empty(t, res.Answers)
}

func TestQRCode(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, alice := s.signup("alice")
	_, bob := s.signup("bob")
	f := s.createQuiz(alice, false)

	var res struct {
		QRCode    string `json:"qr_code"`
		ShareURL  string `json:"share_url"`
		ShareCode string `json:"share_code"`
	}
	s.call(http.MethodGet, "/api/quizzes/"+f.quiz.ID+"/qr-code", alice, nil, http.StatusOK, &res)
	assert.Equal(t, f.quiz.ShareCode, res.ShareCode)
	assert.Equal(t, "http://front.test/quiz/"+f.quiz.ShareCode, res.ShareURL)
	assert.True(t, strings.HasPrefix(res.QRCode, "data:image/png;base64,"))

	s.call(http.MethodGet, "/api/quizzes/"+f.quiz.ID+"/qr-code", bob, nil, http.StatusForbidden, nil)
}

func TestPublishSessionCompleted(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	aliceID, alice := s.signup("alice")
	bobID, bob := s.signup("bob")
	f := s.createQuiz(alice, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := s.redis.Subscribe(ctx, "test:user:"+aliceID)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var ss api.Session
	s.call(http.MethodPost, "/api/sessions", bob, map[string]any{"quiz_id": f.quiz.ID}, http.StatusCreated, &ss)
	s.call(http.MethodPost, "/api/sessions/"+ss.ID+"/complete", bob, nil, http.StatusOK, nil)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n struct {
		Event string               `json:"event"`
		Data  api.SessionCompleted `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
	assert.Equal(t, "session.completed", n.Event)
	assert.Equal(t, api.SessionCompleted{
		SessionID: ss.ID,
		QuizID:    f.quiz.ID,
		QuizTitle: "Capitals",
		UserID:    bobID,
		Score:     "0",
	}, n.Data)
}

func TestLiveLeaderboard(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, alice := s.signup("alice")
	bobID, bob := s.signup("bob")
	f := s.createQuiz(alice, true)

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/quizzes/" + f.quiz.ID + "/leaderboard/live?access_token=" + alice
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	type message struct {
		Type    string          `json:"type"`
		Payload api.Leaderboard `json:"payload"`
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "leaderboard", first.Type)
	assert.Equal(t, f.quiz.ID, first.Payload.QuizID)
	assert.Empty(t, first.Payload.Entries)

	var ss api.Session
	s.call(http.MethodPost, "/api/sessions", bob, map[string]any{"quiz_id": f.quiz.ID}, http.StatusCreated, &ss)
	q := f.questions[0]
	s.call(http.MethodPost, "/api/sessions/"+ss.ID+"/submit-answer", bob,
		map[string]any{"question_id": q.ID, "choice_id": q.Choices[1].ID}, http.StatusOK, nil)
	s.call(http.MethodPost, "/api/sessions/"+ss.ID+"/complete", bob, nil, http.StatusOK, nil)

	var next message
	require.NoError(t, conn.ReadJSON(&next))
	require.Len(t, next.Payload.Entries, 1)
	assert.Equal(t, api.LeaderboardEntry{Rank: 1, UserID: bobID, Username: "bob", Score: 50}, next.Payload.Entries[0])
}

func TestLiveLeaderboardRequiresAccess(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, alice := s.signup("alice")
	_, bob := s.signup("bob")
	f := s.createQuiz(alice, false)

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/quizzes/" + f.quiz.ID + "/leaderboard/live?access_token=" + bob
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNestedRoutesCheckParent(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_, alice := s.signup("alice")
	a := s.createQuiz(alice, false)
	b := s.createQuiz(alice, false)

	tests := map[string]struct {
		method string
		path   string
		body   any
		want   int
	}{
		"update question through another quiz": {
			method: http.MethodPut,
			path:   fmt.Sprintf("/api/quizzes/%s/questions/%s", b.quiz.ID, a.questions[0].ID),
			body:   map[string]any{"text": "moved"},
			want:   http.StatusNotFound,
		},
		"delete question through another quiz": {
			method: http.MethodDelete,
			path:   fmt.Sprintf("/api/quizzes/%s/questions/%s", b.quiz.ID, a.questions[0].ID),
			want:   http.StatusNotFound,
		},
		"update choice through another question": {
			method: http.MethodPut,
			path:   fmt.Sprintf("/api/questions/%s/choices/%s", a.questions[1].ID, a.questions[0].Choices[0].ID),
			body:   map[string]any{"is_correct": true},
			want:   http.StatusNotFound,
		},
		"delete choice through another question": {
			method: http.MethodDelete,
			path:   fmt.Sprintf("/api/questions/%s/choices/%s", b.questions[0].ID, a.questions[0].Choices[0].ID),
			want:   http.StatusNotFound,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			code, body := s.do(tt.method, tt.path, alice, tt.body)
			assert.Equal(t, tt.want, code, "%s", body)
		})
	}

	// nothing moved or disappeared
	var qs []api.Question
	s.call(http.MethodGet, fmt.Sprintf("/api/quizzes/%s/questions", a.quiz.ID), alice, nil, http.StatusOK, &qs)
	require.Len(t, qs, 2)
	assert.Equal(t, "Capital of France?", qs[0].Text)
	require.Len(t, qs[0].Choices, 2)
	require.NotNil(t, qs[0].Choices[0].IsCorrect)
	assert.False(t, *qs[0].Choices[0].IsCorrect)
}
