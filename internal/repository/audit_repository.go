package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flexype/inventory-reservation/internal/model"
)

// AuditPoolInterface defines the database operations needed by AuditRepository.
type AuditPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditRepository appends inventory events to the durable audit log.
type AuditRepository struct {
	pool AuditPoolInterface
}

// NewAuditRepository creates a new AuditRepository with the given pool.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// NewAuditRepositoryWithPool creates a new AuditRepository with a custom pool
// interface. This is primarily used for testing.
func NewAuditRepositoryWithPool(pool AuditPoolInterface) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Insert appends an audit event. Rows are never updated or deleted.
func (r *AuditRepository) Insert(ctx context.Context, ev *model.AuditEvent) error {
	var details []byte
	if ev.Details != nil {
		var err error
		details, err = json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (event_type, user_id, sku, reservation_id, details, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.EventType, ev.UserID, ev.SKU, ev.ReservationID, details, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
