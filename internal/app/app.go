// Package app wires the identity store: repositories, services, the command
// pipeline, and the HTTP router, plus the background sweeps.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"idstore/internal/api"
	"idstore/internal/command"
	"idstore/internal/config"
	"idstore/internal/credential"
	"idstore/internal/db/repository"
	"idstore/internal/domain"
	"idstore/internal/events"
	"idstore/internal/middleware"
	"idstore/internal/ratelimit"
	"idstore/internal/service/auth"
)

// Deps holds the external dependencies main() must provide: the database
// handle, config, and the logger.
type Deps struct {
	Cfg    *config.Config
	DB     *sql.DB
	Logger *slog.Logger
}

// App is the fully wired application.
type App struct {
	Router   *chi.Mux
	Login    *auth.LoginService
	Sessions *auth.SessionService
	Pipeline *command.Pipeline

	cfg     *config.Config
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New wires repositories, services, and the router from the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	clock := domain.SystemClock{}

	store := repository.NewStore(deps.DB)
	auditRepo := repository.NewAuditRepo(deps.DB)

	// Audit events go to the log and to the audit table.
	sink := events.Multi{
		events.NewSlogSink(logger),
		events.NewRepoSink(auditRepo, clock, logger),
	}

	creds := credential.NewService(cfg.PBKDF2Iterations)
	limiter := ratelimit.NewLimiter(cfg.LoginWindow)

	login := auth.NewLoginService(store, creds, limiter, sink, clock, cfg.SessionTTL, logger)
	sessions := auth.NewSessionService(store, clock, logger)
	pipe := command.NewPipeline(store, creds, sink, clock, logger)

	tokens, err := middleware.NewTokenCodec(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := api.NewHandler(login, pipe, tokens, logger)
	router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SessionToken(tokens))
		handler.Routes(r)
	})

	return &App{
		Router:   router,
		Login:    login,
		Sessions: sessions,
		Pipeline: pipe,
		cfg:      cfg,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Run serves HTTP and schedules the background sweeps until ctx is
// cancelled, then drains the server.
func (a *App) Run(ctx context.Context) error {
	sweeper := cron.New()
	_, err := sweeper.AddFunc(a.cfg.SweepSchedule, func() {
		n, err := a.Sessions.SweepExpired(context.Background())
		if err != nil {
			a.logger.Warn("session sweep failed", "error", err)
		} else if n > 0 {
			a.logger.Info("swept expired sessions", "count", n)
		}
		a.limiter.Sweep(10 * time.Minute)
	})
	if err != nil {
		return fmt.Errorf("sweep schedule %q: %w", a.cfg.SweepSchedule, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
