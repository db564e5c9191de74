package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/leaderboard"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type (
	Leaderboard struct {
		QuizID  string             `json:"quiz_id"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Rank     int     `json:"rank"`
		UserID   string  `json:"user_id"`
		Username string  `json:"username"`
		Score    float64 `json:"score"`
	}
)

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	res := Leaderboard{
		QuizID:  l.QuizID,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for i, e := range l.Entries {
		res.Entries = append(res.Entries, LeaderboardEntry{
			Rank:     i + 1,
			UserID:   e.UserID,
			Username: e.Username,
			Score:    e.Score,
		})
	}
	return res
}

// canViewQuiz aborts the request unless the viewer may see the quiz.
func (a *API) canViewQuiz(c *gin.Context, quizID string) bool {
	_, acc, err := a.cs.Authorize(c.Request.Context(), viewer(c), quizID)
	if err != nil {
		abort(c, err)
		return false
	}
	if !acc.CanView() {
		abort(c, errors.Permission("no access to quiz: quiz=%s", quizID))
		return false
	}
	return true
}

func (a *API) getLeaderboard(c *gin.Context) {
	quizID := c.Param("id")
	if !a.canViewQuiz(c, quizID) {
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{QuizID: quizID})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

type liveMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// liveLeaderboard streams the quiz leaderboard: the current one first, then every
// update until the client goes away.
func (a *API) liveLeaderboard(c *gin.Context) {
	quizID := c.Param("id")
	if !a.canViewQuiz(c, quizID) {
		return
	}

	ctx := c.Request.Context()

	updates, unsubscribe := a.live.subscribe(quizID)
	defer unsubscribe()

	l, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{QuizID: quizID})
	if err != nil {
		abort(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(ctx, "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	write := func(m liveMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}

	if err := write(liveMessage{Type: "leaderboard", Payload: toLeaderboard(*l)}); err != nil {
		return
	}

	for {
		select {
		case l := <-updates:
			if err := write(liveMessage{Type: "leaderboard", Payload: toLeaderboard(l)}); err != nil {
				slog.InfoContext(ctx, "api: websocket write failed", "quiz", quizID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// hub fans leaderboard updates out to the live subscribers of each quiz. Slow
// subscribers miss intermediate updates rather than block the publisher.
type hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan domain.Leaderboard]struct{})}
}

func (h *hub) subscribe(quizID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 1)

	h.mu.Lock()
	if h.subs[quizID] == nil {
		h.subs[quizID] = make(map[chan domain.Leaderboard]struct{})
	}
	h.subs[quizID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.subs[quizID], ch)
		if len(h.subs[quizID]) == 0 {
			delete(h.subs, quizID)
		}
	}
}

func (h *hub) broadcast(l domain.Leaderboard) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[l.QuizID] {
		select {
		case ch <- l:
		default:
			// replace the stale pending update with this one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- l:
			default:
			}
		}
	}
}
