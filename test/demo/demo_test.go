//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizshare/internal/api"
	"github.com/victornm/quizshare/internal/domain"
)

const (
	baseURL = "http://localhost:8080"
	prefix  = "quizshare"
)

// TestQuiz runs against a server started with config/local.yaml.
func TestQuiz(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		wg    = new(sync.WaitGroup)
		run   = uuid.NewString()[:8]
		users = []string{"u1", "u2", "u3"}
	)

	master, masterToken := signup(t, "quizmaster-"+run)

	// Prepare Redis subscribers
	rc := makeRedis(t)
	subscribeAsUser(ctx, t, rc, wg, master.ID)

	var quiz api.Quiz
	call(t, http.MethodPost, "/api/quizzes", masterToken, map[string]any{
		"title":            "Demo " + run,
		"duration_minutes": 5,
		"is_public":        true,
	}, &quiz)

	// questions[i] holds the question id and its correct choice
	var questions [][2]string
	for i := 0; i < 3; i++ {
		var q api.Question
		call(t, http.MethodPost, fmt.Sprintf("/api/quizzes/%s/questions", quiz.ID), masterToken,
			map[string]any{"text": fmt.Sprintf("Question %d", i+1), "order": i}, &q)

		var correct string
		for j, text := range []string{"A", "B", "C"} {
			var c api.Choice
			call(t, http.MethodPost, fmt.Sprintf("/api/questions/%s/choices", q.ID), masterToken,
				map[string]any{"text": text, "is_correct": j == i, "order": j}, &c)
			if j == i {
				correct = c.ID
			}
		}
		questions = append(questions, [2]string{q.ID, correct})
	}

	// Every user attempts the quiz concurrently, user n answering the first n+1 questions right
	var eg errgroup.Group
	for n, u := range users {
		n, u := n, u
		eg.Go(func() error {
			player, token := signup(t, u+"-"+run)
			subscribeAsUser(ctx, t, rc, wg, player.ID)

			var ss api.Session
			call(t, http.MethodPost, "/api/sessions", token, map[string]any{"quiz_id": quiz.ID}, &ss)

			for i, q := range questions[:n+1] {
				call(t, http.MethodPost, fmt.Sprintf("/api/sessions/%s/submit-answer", ss.ID), token,
					map[string]any{"question_id": q[0], "choice_id": q[1]}, nil)
				t.Logf("User %q answered question %d", u, i+1)
			}

			var res api.Result
			call(t, http.MethodPost, fmt.Sprintf("/api/sessions/%s/complete", ss.ID), token, nil, &res)
			t.Logf("User %q completed: score=%s", u, res.Score)
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	time.Sleep(2 * time.Second)

	var l api.Leaderboard
	call(t, http.MethodGet, fmt.Sprintf("/api/quizzes/%s/leaderboard", quiz.ID), "", nil, &l)
	t.Logf("final leaderboard:\n%s", formatLeaderboard(l))
	require.Len(t, l.Entries, len(users))

	cancel()
	wg.Wait()
}

func signup(t *testing.T, username string) (api.User, string) {
	var u api.User
	call(t, http.MethodPost, "/api/register", "", map[string]any{
		"username":  username,
		"password":  "password123",
		"password2": "password123",
	}, &u)

	var tok struct {
		Access string `json:"access"`
	}
	call(t, http.MethodPost, "/api/token", "", map[string]any{
		"username": username,
		"password": "password123",
	}, &tok)

	return u, tok.Access
}

func call(t *testing.T, method, path, token string, body, out any) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Less(t, resp.StatusCode, 300, "%s %s: %s", method, path, b)

	if out != nil {
		require.NoError(t, json.Unmarshal(b, out))
	}
}

func subscribeAsUser(ctx context.Context, t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, u string) {
	wg.Add(1)
	sub := subscribeRedis(ctx, t, rc, fmt.Sprintf("%s:user:%s", prefix, u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameLeaderboardUpdated:
				var l api.Leaderboard
				if err := json.Unmarshal(n.Data, &l); err != nil {
					t.Logf("unmarshal leaderboard: %v", err)
					continue
				}

				t.Logf("%s leaderboard:\n%s", u, formatLeaderboard(l))
			case domain.EventNameSessionCompleted:
				var c api.SessionCompleted
				if err := json.Unmarshal(n.Data, &c); err != nil {
					t.Logf("unmarshal session completed: %v", err)
					continue
				}

				t.Logf("%s notified: user %s completed %q with score %s", u, c.UserID, c.QuizTitle, c.Score)
			}
		}
	}()
}

func subscribeRedis(ctx context.Context, t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatLeaderboard(l api.Leaderboard) string {
	var s string
	for _, e := range l.Entries {
		s += fmt.Sprintf("%d. %s: %.2f\n", e.Rank, e.Username, e.Score)
	}
	return s
}
