// @title        Backoffice Console API
// @version      1.0
// @description  Authentication, session lifecycle and role-gated navigation of the back-office console.
// @BasePath     /
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/api"
	"github.com/99minutos/backoffice-console/internal/api/middleware"
	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/service"
	"github.com/99minutos/backoffice-console/internal/core/session"
	"github.com/99minutos/backoffice-console/internal/infrastructure/backend"
	"github.com/99minutos/backoffice-console/internal/infrastructure/config"
	mongodb "github.com/99minutos/backoffice-console/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/backoffice-console/internal/infrastructure/db/redis"
	httpserver "github.com/99minutos/backoffice-console/internal/infrastructure/http"
	"github.com/99minutos/backoffice-console/internal/infrastructure/http/handlers"
	"github.com/99minutos/backoffice-console/internal/infrastructure/queue"
	"github.com/99minutos/backoffice-console/pkg/logger"
	"github.com/99minutos/backoffice-console/pkg/metrics"
)

const serviceName = "backoffice-console"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Service: serviceName})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
		Fields:  map[string]string{"env": cfg.Env},
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("console stopped")
	}
	log.Info().Msg("console stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	store, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()
	if err := mongodb.EnsureIndexes(ctx, store.DB); err != nil {
		log.Warn().Err(err).Msg("audit indexes not ensured")
	}

	auditSvc := service.NewAuditService(mongodb.NewAuditRepository(store.DB), logger.Component("audit"))
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditSvc, logger.Component("audit"))
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	sessions := service.NewSessions(service.SessionsOptions{
		Store: session.Options{
			IdleTimeout: cfg.Session.IdleTimeout,
			AccessTTL:   cfg.Session.AccessTTL,
			RefreshTTL:  cfg.Session.RefreshTTL,
			Clock:       session.SystemClock{},
		},
		NewPersistence: redisdb.Factory(rdb),
		Backend:        backend.NewClient(backend.Config{BaseURL: cfg.Backend.URL, Timeout: cfg.Backend.Timeout}, logger.Component("backend")),
		Audit:          dispatcher,
		OnExpire: func(string, domain.Identity) {
			metrics.SessionsExpiredTotal.Inc()
		},
	}, logger.Component("session"))

	e := api.NewRouter(api.Deps{
		Sessions: sessions,
		Audit:    dispatcher,
		Cookie: middleware.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
			MaxAge: cfg.Session.RefreshTTL,
		},
		AuthRate:   cfg.Auth.RatePerSecond,
		AuthBurst:  cfg.Auth.Burst,
		TrustProxy: cfg.Auth.TrustProxy,
		Readiness: map[string]handlers.Pinger{
			"redis":   handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			"mongodb": store,
		},
		Log: logger.Component("http"),
	})

	return httpserver.Serve(ctx, e, ":"+cfg.Port, log)
}
