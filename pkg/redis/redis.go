package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Options configures the hot-state client.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Timeout bounds every dial, read and write against the store.
	Timeout time.Duration
}

// NewClient creates a Redis client with bounded per-operation deadlines and
// verifies connectivity with retry. Retries with exponential backoff:
// 1s, 2s, 4s, ... before failure.
func NewClient(ctx context.Context, opts Options, maxRetries int) (*goredis.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	// Ensure at least one attempt even if maxRetries is 0
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			log.Info().Str("addr", opts.Addr).Msg("hot-state connection established")
			return client, nil
		}

		backoff := time.Duration(1<<attempt) * time.Second
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", backoff).
			Msg("hot-state connection failed, retrying")

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
}
