package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizshare/internal/api"
	"github.com/victornm/quizshare/internal/catalog"
	"github.com/victornm/quizshare/internal/event"
	"github.com/victornm/quizshare/internal/extraction"
	"github.com/victornm/quizshare/internal/leaderboard"
	"github.com/victornm/quizshare/internal/session"
	"github.com/victornm/quizshare/internal/sharelink"
	"github.com/victornm/quizshare/internal/sharing"
	"github.com/victornm/quizshare/internal/store"
	"github.com/victornm/quizshare/internal/store/memory"
	"github.com/victornm/quizshare/internal/store/postgres"
	"github.com/victornm/quizshare/internal/telemetry"
	"github.com/victornm/quizshare/internal/user"
)

type Config struct {
	HTTP struct {
		Port int32
		// FrontendURL is the base of the share links encoded in QR codes.
		FrontendURL string
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		// DSN selects the Postgres store. The in-memory store is used when empty.
		DSN string
	}

	Auth struct {
		Secret string
		TTL    time.Duration
	}

	OpenAI struct {
		APIKey  string
		BaseURL string
		Model   string
		Timeout time.Duration
	}

	Quiz struct {
		AllowEditsDuringAttempts bool
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    store.Store
	}

	service struct {
		user        *user.Service
		catalog     *catalog.Service
		sharing     *sharing.Service
		session     *session.Service
		extraction  *extraction.Service
		leaderboard *leaderboard.Service
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	if c.Auth.Secret == "" {
		return nil, fmt.Errorf("server: auth secret not configured")
	}

	s := &Server{c: c}

	s.eb = event.NewBus()
	telemetry.NewMetrics(prometheus.DefaultRegisterer, s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	if s.c.Postgres.DSN == "" {
		slog.Warn("server: postgres not configured, using in-memory store")
		s.infra.store = memory.New()
		return nil
	}

	db, err := postgres.Connect(context.Background(), s.c.Postgres.DSN)
	if err != nil {
		return err
	}

	s.infra.postgres = db
	s.infra.store = postgres.New(db)
	return nil
}

func (s *Server) initService() {
	st := s.infra.store

	s.service.user = user.NewService(user.Config{
		Store:  st,
		Tokens: user.NewTokenIssuer(s.c.Auth.Secret, s.c.Auth.TTL),
	})

	s.service.catalog = catalog.NewService(catalog.Config{
		Store:                    st,
		AllowEditsDuringAttempts: s.c.Quiz.AllowEditsDuringAttempts,
	})

	s.service.sharing = sharing.NewService(sharing.Config{
		Store: st,
	})

	s.service.session = session.NewService(session.Config{
		Store:    st,
		EventBus: s.eb,
	})

	var extractor extraction.Extractor
	if s.c.OpenAI.APIKey != "" {
		extractor = extraction.NewOpenAI(extraction.OpenAIConfig{
			APIKey:  s.c.OpenAI.APIKey,
			BaseURL: s.c.OpenAI.BaseURL,
			Model:   s.c.OpenAI.Model,
		})
	} else {
		slog.Warn("server: openai not configured, image uploads will not be processed")
	}

	s.service.extraction = extraction.NewService(extraction.Config{
		Store:     st,
		Catalog:   s.service.catalog,
		Extractor: extractor,
		Timeout:   s.c.OpenAI.Timeout,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Store:    st,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), telemetry.HTTPLogger())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", s.healthz)
	pprof.Register(e, "/debug/pprof")

	a := api.New(api.Config{
		EventBus:     s.eb,
		Users:        s.service.user,
		Catalog:      s.service.catalog,
		Sharing:      s.service.sharing,
		Sessions:     s.service.session,
		Extraction:   s.service.extraction,
		Leaderboard:  s.service.leaderboard,
		ShareLinks:   sharelink.New(s.c.HTTP.FrontendURL, 0),
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})
	a.Register(e)

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"redis.leaderboard": func(ctx context.Context) error { return s.infra.redis.leaderboard.Ping(ctx).Err() },
		"redis.pubsub":      func(ctx context.Context) error { return s.infra.redis.pubsub.Ping(ctx).Err() },
	}
	if s.infra.postgres != nil {
		checks["postgres"] = s.infra.postgres.Ping
	}

	res := make(map[string]string, len(checks))
	healthy := true
	for name, check := range checks {
		res[name] = "ok"
		if err := check(ctx); err != nil {
			res[name] = err.Error()
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for name, r := range map[string]redis.UniversalClient{
		"leaderboard": s.infra.redis.leaderboard,
		"pubsub":      s.infra.redis.pubsub,
	} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
