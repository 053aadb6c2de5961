package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/config"
	"dukaan/backend/internal/httpapi"
	"dukaan/backend/internal/restock"
	"dukaan/backend/internal/service"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/store/memory"
	"dukaan/backend/internal/store/sqlstore"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	repo, closeRepo, err := openRepository(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage unavailable; refusing to start with in-memory fallback", zap.Error(err))
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	reports := openReportCache(startCtx, cfg, logger)
	if closer, ok := reports.(interface{ Close() error }); ok {
		closers = append(closers, closer.Close)
	}

	svc := service.New(repo, restock.NewAdvisor(14, 7), reports, cfg.ReportCacheTTL, logger.Named("service"))
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		runOverdueSweeper(runCtx, svc, cfg.OverdueSweepInterval, logger)
	}()

	go func() {
		logger.Info("dukaan backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	<-sweeperDone

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *zap.Logger {
	build := zap.NewProduction
	if cfg.Development() {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// openRepository picks Postgres when DATABASE_URL is set, SQLite when
// SQLITE_PATH is set, and the seeded memory store otherwise. A configured
// database that cannot be reached is an error.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := sqlstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, pg.Close, nil
	case cfg.SQLitePath != "":
		lite, err := sqlstore.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("repository: sqlite", zap.String("path", cfg.SQLitePath))
		return lite, lite.Close, nil
	default:
		logger.Warn("repository: in-memory, data is lost on restart")
		return memory.NewSeeded(), nil, nil
	}
}

// openReportCache falls back to no caching when Redis is not configured or
// not reachable; reports are then computed on every request.
func openReportCache(ctx context.Context, cfg config.Config, logger *zap.Logger) cache.ReportCache {
	if cfg.RedisAddr == "" {
		logger.Info("report cache: noop")
		return cache.NoopReportCache{}
	}

	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using noop report cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopReportCache{}
	}
	logger.Info("report cache: redis", zap.String("addr", cfg.RedisAddr))
	return redisCache
}

type overdueRefresher interface {
	RefreshOverdue(ctx context.Context) (int, error)
}

// runOverdueSweeper refreshes overdue receivables once at start and then on
// every tick until ctx is done.
func runOverdueSweeper(ctx context.Context, svc overdueRefresher, interval time.Duration, logger *zap.Logger) {
	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := svc.RefreshOverdue(sweepCtx); err != nil && ctx.Err() == nil {
			logger.Warn("overdue sweep failed", zap.Error(err))
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects non-numeric, repeated-digit and sequential
// PINs as well as a short list of common ones.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must contain digits only")
		}
	}
	switch pin {
	case "121212", "112233", "123123", "101010", "246810":
		return fmt.Errorf("common PIN not allowed")
	}

	allSame, ascending, descending := true, true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		allSame = allSame && diff == 0
		ascending = ascending && diff == 1
		descending = descending && diff == -1
	}
	switch {
	case allSame:
		return fmt.Errorf("all-same-digit PIN not allowed")
	case ascending || descending:
		return fmt.Errorf("sequential PIN not allowed")
	}
	return nil
}
