// Command sessionauth-server serves the login, registration, and admin
// endpoints backed by PostgreSQL, with Redis for shared rate limiting when
// REDIS_ADDR is set.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maccas-one/sessionauth"
	"github.com/maccas-one/sessionauth/httpapi"
	"github.com/maccas-one/sessionauth/internal/config"
	promexport "github.com/maccas-one/sessionauth/metrics/export/prometheus"
	"github.com/maccas-one/sessionauth/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	logger.SetLevel(cfg.Level())

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	engineCfg := cfg.Engine()
	builder := sessionauth.New().
		WithConfig(engineCfg).
		WithStore(store).
		WithLogger(logger)

	if cfg.Audit {
		builder = builder.WithAuditSink(sessionauth.NewLogrusSink(logger.WithField("component", "audit")))
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		builder = builder.WithRedis(rdb)
		logger.WithField("redis_addr", cfg.RedisAddr).Info("using redis rate limit store")
	} else {
		logger.Warn("REDIS_ADDR not set; rate limits are per process")
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, code := range engine.SecurityReport().LintCodes {
		logger.WithField("code", code).Warn("configuration lint")
	}

	opts := httpapi.OptionsFromConfig(engineCfg)
	opts.TrustProxy = cfg.Server.TrustProxy
	opts.Logger = logger
	if cfg.Metrics.Enabled {
		opts.MetricsHandler = promexport.NewExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewHandler(engine, opts).Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
