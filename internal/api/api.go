// Package api exposes the quiz services over REST, pushes notifications to Redis
// channels and streams live leaderboards over websockets.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizshare/internal/catalog"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/event"
	"github.com/victornm/quizshare/internal/extraction"
	"github.com/victornm/quizshare/internal/leaderboard"
	"github.com/victornm/quizshare/internal/session"
	"github.com/victornm/quizshare/internal/sharelink"
	"github.com/victornm/quizshare/internal/sharing"
	"github.com/victornm/quizshare/internal/user"
)

const viewerKey = "viewer"

type Config struct {
	EventBus    *event.Bus
	Users       *user.Service
	Catalog     *catalog.Service
	Sharing     *sharing.Service
	Sessions    *session.Service
	Extraction  *extraction.Service
	Leaderboard *leaderboard.Service
	ShareLinks  *sharelink.Builder

	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	us  *user.Service
	cs  *catalog.Service
	shs *sharing.Service
	ss  *session.Service
	es  *extraction.Service
	ls  *leaderboard.Service
	sl  *sharelink.Builder

	live *hub

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		us:     c.Users,
		cs:     c.Catalog,
		shs:    c.Sharing,
		ss:     c.Sessions,
		es:     c.Extraction,
		ls:     c.Leaderboard,
		sl:     c.ShareLinks,
		live:   newHub(),
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		a.live.broadcast(e.(domain.EventLeaderboardUpdated).Leaderboard)
		return nil
	})

	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
		c.EventBus.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
			return a.PublishSessionCompleted(ctx, e.(domain.EventSessionCompleted))
		})
	}

	return a
}

// Register mounts every route under /api.
func (a *API) Register(r gin.IRouter) {
	g := r.Group("/api", a.authenticate)

	g.POST("/register", a.register)
	g.POST("/token", a.login)
	g.GET("/profile", a.getProfile)
	g.PUT("/profile", a.updateProfile)

	g.GET("/quizzes", a.listQuizzes)
	g.POST("/quizzes", a.createQuiz)
	g.GET("/quizzes/shared-with-me", a.listSharedWithMe)
	g.GET("/quizzes/:id", a.getQuiz)
	g.PUT("/quizzes/:id", a.updateQuiz)
	g.DELETE("/quizzes/:id", a.deleteQuiz)

	g.GET("/quizzes/:id/questions", a.listQuestions)
	g.POST("/quizzes/:id/questions", a.createQuestion)
	g.PUT("/quizzes/:id/questions/:qid", a.updateQuestion)
	g.DELETE("/quizzes/:id/questions/:qid", a.deleteQuestion)
	g.GET("/questions/:qid/choices", a.listChoices)
	g.POST("/questions/:qid/choices", a.createChoice)
	g.PUT("/questions/:qid/choices/:cid", a.updateChoice)
	g.DELETE("/questions/:qid/choices/:cid", a.deleteChoice)

	g.POST("/quizzes/:id/share", a.share)
	g.GET("/quizzes/:id/shares", a.listQuizShares)
	g.GET("/shares/sent", a.listSentShares)
	g.GET("/shares/received", a.listReceivedShares)
	g.GET("/quizzes/:id/qr-code", a.qrCode)
	g.GET("/join/:code", a.join)

	g.GET("/sessions", a.listSessions)
	g.POST("/sessions", a.startSession)
	g.GET("/sessions/:id", a.getSession)
	g.POST("/sessions/:id/submit-answer", a.submitAnswer)
	g.POST("/sessions/:id/complete", a.completeSession)
	g.GET("/sessions/:id/result", a.getResult)

	g.POST("/upload-image", a.uploadImage)
	g.POST("/create-quiz-from-image", a.createQuizFromImage)

	g.GET("/quizzes/:id/leaderboard", a.getLeaderboard)
	g.GET("/quizzes/:id/leaderboard/live", a.liveLeaderboard)
}

// authenticate resolves the bearer token into a viewer. Requests without a token
// are anonymous; an invalid token is rejected. Websocket handshakes may carry the
// token in the access_token query parameter instead.
func (a *API) authenticate(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if h == "" && websocket.IsWebSocketUpgrade(c.Request) && c.Query("access_token") != "" {
		h = "Bearer " + c.Query("access_token")
	}
	if h == "" {
		c.Set(viewerKey, domain.Anonymous)
		c.Next()
		return
	}

	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("unsupported authorization scheme")))
		return
	}

	v, err := a.us.Authenticate(strings.TrimSpace(tok))
	if err != nil {
		abort(c, err)
		return
	}

	c.Set(viewerKey, v)
	c.Next()
}

func viewer(c *gin.Context) domain.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		return v.(domain.Viewer)
	}
	return domain.Anonymous
}

type errorResponse struct {
	Error *errors.Error `json:"error"`
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{Error: e})
}

// bind decodes the JSON body into req, reporting decoding and binding-tag failures
// as validation errors.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid request body: %v", err),
			errors.WithCause(err),
		))
		return false
	}
	return true
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
