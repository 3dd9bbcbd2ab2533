package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Options struct {
	Addr     string
	Username string
	Password string
	Attempts int           // ping attempts before giving up, default 3
	Backoff  time.Duration // wait between attempts, default 1s
}

// NewRedisClient connects and pings, retrying a few times while Redis comes up.
func NewRedisClient(ctx context.Context, opts Options, logger zerolog.Logger) (*redis.Client, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	var err error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return rdb, nil
		}

		logger.Warn().Err(err).Int("attempt", attempt).Str("addr", opts.Addr).Msg("redis ping failed")
		if attempt == opts.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(opts.Backoff):
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("ping redis: %w", err)
}
