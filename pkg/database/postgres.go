package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that need transaction support should accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool creates a PostgreSQL connection pool with retry logic.
// Retries with exponential backoff: 1s, 2s, 4s, 8s, 16s (total ~31s before failure).
func NewPool(ctx context.Context, dsn string, maxRetries int) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	// Ensure at least one attempt even if maxRetries is 0
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		pool, err = pgxpool.New(ctx, dsn)
		if err == nil {
			// Verify connection actually works
			if pingErr := pool.Ping(ctx); pingErr == nil {
				log.Info().Msg("database connection established")
				return pool, nil
			} else {
				pool.Close()
				err = fmt.Errorf("ping failed: %w", pingErr)
			}
		}

		backoff := time.Duration(1<<attempt) * time.Second
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", backoff).
			Msg("database connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
}

// schema holds the durable-store DDL. All statements are idempotent so the
// bootstrap can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id     VARCHAR(30) PRIMARY KEY,
		user_id      VARCHAR(50) NOT NULL,
		status       VARCHAR(20) NOT NULL DEFAULT 'confirmed',
		total_amount NUMERIC(10,2),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id             BIGSERIAL PRIMARY KEY,
		order_id       VARCHAR(30) NOT NULL REFERENCES orders (order_id),
		sku            VARCHAR(50) NOT NULL,
		quantity       INTEGER NOT NULL,
		price_per_unit NUMERIC(10,2)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id             BIGSERIAL PRIMARY KEY,
		event_type     VARCHAR(50) NOT NULL,
		user_id        VARCHAR(50),
		sku            VARCHAR(50),
		reservation_id VARCHAR(30),
		details        JSONB,
		timestamp      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_event_type ON audit_log (event_type)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_sku ON audit_log (sku)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log (timestamp)`,
}

// EnsureSchema creates the orders, order_items and audit_log tables if they
// do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	log.Info().Msg("durable schema ensured")
	return nil
}
