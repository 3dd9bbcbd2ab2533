package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/nutri-scheduling/internal/config"
	"github.com/hackgods/nutri-scheduling/internal/db"
	"github.com/hackgods/nutri-scheduling/internal/logging"
	redisclient "github.com/hackgods/nutri-scheduling/internal/redis"
	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Env).With().Str("component", "pending-worker").Logger()

	if cfg.PendingTTL <= 0 {
		logger.Info().Msg("PENDING_TTL not set, stale pending appointments are kept; nothing to do")
		return
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("pending_ttl", cfg.PendingTTL).
		Msg("pending worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// CancelStalePending never locks slots.
	svc := scheduling.NewService(
		scheduling.NewPgRepository(pgPool),
		redisclient.NewLocalSlotLocker(),
		cfg,
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping pending worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CancelStalePending(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("pending run error")
		return
	}
	logger.Info().Int("cancelled", n).Dur("took", time.Since(start)).Msg("pending run complete")
}
