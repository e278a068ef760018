// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"krishi-sahayak/internal/agent"
	"krishi-sahayak/internal/common/auth"
	"krishi-sahayak/internal/common/config"
	"krishi-sahayak/internal/common/database"
	"krishi-sahayak/internal/common/logger"
	"krishi-sahayak/internal/common/observability"
	"krishi-sahayak/internal/landregistry"
	"krishi-sahayak/internal/lifecycle"
	"krishi-sahayak/internal/reconcile"
	"krishi-sahayak/internal/server"
	"krishi-sahayak/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting service", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := connectPostgres(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("postgres unavailable", nil)
		os.Exit(1)
	}
	defer pg.Close()

	rdb, err := connectRedis(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("redis unavailable", nil)
		os.Exit(1)
	}
	defer rdb.Close()

	pgStore := store.NewPostgresStore(pg.DB)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		log.WithError(err).Error("schema bootstrap failed", nil)
		os.Exit(1)
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tokens := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTRefreshSecret,
		time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTTLDays)*24*time.Hour,
	)
	lc := lifecycle.NewService(pgStore, tokens, log).WithObservability(obs)
	sessions := reconcile.NewSessionStore(
		rdb.Client,
		time.Duration(cfg.Reconcile.SessionTTLHours)*time.Hour,
		config.GetDuration(cfg.Reconcile.HighlightWindowMS),
		log,
	)
	processor := agent.NewProcessor(pgStore, lc, sessions, rdb.Client, log)
	registry := landregistry.NewClient(
		cfg.LandRegistry.BaseURL,
		cfg.LandRegistry.APIKey,
		config.GetDuration(cfg.LandRegistry.Timeout),
		log,
	)

	api := server.New(server.Deps{
		Tokens:     tokens,
		Users:      pgStore,
		Lifecycle:  lc,
		Agent:      processor,
		Registry:   registry,
		Sessions:   sessions,
		CORSOrigin: cfg.Server.CORSOrigin,
		Log:        log,
		ReadyChecks: map[string]func(ctx context.Context) error{
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
		},
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.Timeout),
		WriteTimeout: config.GetDuration(cfg.Server.Timeout),
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	go func() {
		log.Info("metrics server listening", map[string]interface{}{"port": cfg.Server.MetricsPort})
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed", nil)
		}
	}()

	go func() {
		log.Info("http server listening", map[string]interface{}{"port": cfg.Server.Port})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed", nil)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete", nil)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics shutdown incomplete", nil)
	}
	log.Info("service stopped", nil)
}

func connectPostgres(ctx context.Context, cfg *config.Config, log logger.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, log, "postgres")
	return pg, err
}

func connectRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*database.RedisClient, error) {
	var rdb *database.RedisClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, log, "redis")
	return rdb, err
}

func retryWithBackoff(ctx context.Context, attempts int, initial time.Duration, fn func() error, log logger.Logger, name string) error {
	delay := initial
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		log.WithError(err).Warn("connection attempt failed", map[string]interface{}{
			"target":  name,
			"attempt": i,
			"retryIn": delay.String(),
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
