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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/nutri-scheduling/internal/account"
	"github.com/hackgods/nutri-scheduling/internal/api"
	"github.com/hackgods/nutri-scheduling/internal/config"
	"github.com/hackgods/nutri-scheduling/internal/db"
	"github.com/hackgods/nutri-scheduling/internal/logging"
	redisclient "github.com/hackgods/nutri-scheduling/internal/redis"
	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-server",
		Short: "Nutrition clinic scheduling API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Env)

			pool, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info().Int("applied", count).Msg("migrations complete")
			return nil
		},
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		return err
	}

	logger := logging.New(cfg.Env)
	logger.Info().Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	pgPool, err := connect(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("postgres connection error")
		return err
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if _, err := db.NewMigrator(pgPool).Up(ctx); err != nil {
		logger.Error().Err(err).Msg("migration error")
		return err
	}

	locker, rdb, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("redis connection error")
		return err
	}
	var redisPing api.PingFunc
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	docs, err := account.NewDiskDocumentStore(cfg.UploadsDir)
	if err != nil {
		logger.Error().Err(err).Msg("uploads dir error")
		return err
	}

	schedSvc := scheduling.NewService(scheduling.NewPgRepository(pgPool), locker, cfg, logger)
	accountSvc := account.NewService(
		account.NewPgRepository(pgPool),
		docs,
		account.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		logger,
	)

	router := api.NewRouter(api.RouterConfig{
		Scheduling:     schedSvc,
		Accounts:       accountSvc,
		Health:         api.NewHealthHandler(pgPool.Ping, redisPing, cfg.Env, version),
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	logger.Info().Msg("api-server stopped")
	return nil
}

func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
}

// newLocker returns the Redis slot locker, or an in-process one when Redis
// is disabled. The client is nil in the latter case.
func newLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger) (redisclient.Locker, *redis.Client, error) {
	if !cfg.RedisEnabled {
		logger.Warn().Msg("redis disabled, using in-process slot locks")
		return redisclient.NewLocalSlotLocker(), nil, nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	return redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL), rdb, nil
}
