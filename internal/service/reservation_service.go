package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/model"
)

// InventoryRepositoryInterface defines the hot-state operations the
// reservation engine needs.
type InventoryRepositoryInterface interface {
	Initialize(ctx context.Context, sku string, quantity int64) (int64, error)
	Available(ctx context.Context, sku string) (int64, bool, error)
	Reserve(ctx context.Context, res *model.Reservation) error
	Release(ctx context.Context, id, ownerID string) (*model.Reservation, error)
	Due(ctx context.Context, now time.Time, limit int64) ([]string, error)
}

// IdempotencyRepositoryInterface defines the fingerprint mapping operations.
type IdempotencyRepositoryInterface interface {
	Lookup(ctx context.Context, userID, fingerprint string) (*model.ReserveResponse, bool, error)
	BeginSlot(ctx context.Context, userID, fingerprint string) (bool, error)
	Complete(ctx context.Context, userID, fingerprint string, resp *model.ReserveResponse) error
	Abort(ctx context.Context, userID, fingerprint string) error
}

// AuditRepositoryInterface defines the audit sink write interface.
type AuditRepositoryInterface interface {
	Insert(ctx context.Context, ev *model.AuditEvent) error
}

// How long a replayed fingerprint waits for the original request to land
// before giving up.
const (
	replayAttempts = 5
	replayWait     = 100 * time.Millisecond
)

// ReservationService owns the reservation lifecycle: the atomic
// check-and-decrement, the idempotent acceptance of retried creates, and the
// cancel/expire paths that restore stock.
type ReservationService struct {
	inventory   InventoryRepositoryInterface
	idempotency IdempotencyRepositoryInterface
	audit       AuditRepositoryInterface
	ttl         time.Duration
	maxQuantity int
	now         func() time.Time
}

// NewReservationService creates a ReservationService. ttl is the hold
// duration of new reservations; maxQuantity caps units per reservation.
func NewReservationService(
	inventory InventoryRepositoryInterface,
	idempotency IdempotencyRepositoryInterface,
	audit AuditRepositoryInterface,
	ttl time.Duration,
	maxQuantity int,
) *ReservationService {
	return &ReservationService{
		inventory:   inventory,
		idempotency: idempotency,
		audit:       audit,
		ttl:         ttl,
		maxQuantity: maxQuantity,
		now:         time.Now,
	}
}

func newReservationID() string {
	u := uuid.New()
	return "rsv_" + hex.EncodeToString(u[:])[:12]
}

// Initialize sets the SKU counter, overwriting any prior value. Callers are
// expected to gate this behind an administrative path.
func (s *ReservationService) Initialize(ctx context.Context, sku string, quantity int64) (int64, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("%w: quantity must not be negative", ErrInvalidRequest)
	}
	return s.inventory.Initialize(ctx, sku, quantity)
}

// Status returns the current availability of a SKU.
func (s *ReservationService) Status(ctx context.Context, sku string) (*model.InventoryStatus, error) {
	available, initialized, err := s.inventory.Available(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &model.InventoryStatus{
		SKU:           sku,
		Available:     available,
		Uninitialized: !initialized,
	}, nil
}

// Reserve places a time-bounded hold on quantity units of a SKU. With a
// non-empty fingerprint, a replayed request returns the original response
// without a second decrement. Returns *InsufficientStockError,
// ErrNotInitialized, ErrInvalidRequest or ErrIdempotencyInFlight on the
// failure paths.
func (s *ReservationService) Reserve(ctx context.Context, userID string, req *model.ReserveRequest, fingerprint string) (*model.ReserveResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if req.Quantity < 1 || req.Quantity > s.maxQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidRequest, s.maxQuantity)
	}

	claimed := false
	if fingerprint != "" {
		replay, ok, err := s.claimFingerprint(ctx, userID, fingerprint)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			log.Info().
				Str("user_id", userID).
				Str("reservation_id", replay.ReservationID).
				Msg("idempotent replay detected")
			return replay, nil
		}
		claimed = ok
	}

	now := s.now().UTC()
	res := &model.Reservation{
		ID:        newReservationID(),
		UserID:    userID,
		SKU:       req.SKU,
		Quantity:  req.Quantity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.inventory.Reserve(ctx, res); err != nil {
		if claimed {
			if abortErr := s.idempotency.Abort(ctx, userID, fingerprint); abortErr != nil {
				log.Error().Err(abortErr).Str("user_id", userID).Msg("failed to release idempotency slot")
			}
		}
		var insufficient *InsufficientStockError
		if errors.As(err, &insufficient) {
			s.writeAudit(ctx, model.AuditOversellBlocked, userID, req.SKU, "", map[string]any{
				"requested": req.Quantity,
				"available": insufficient.Available,
			})
		}
		return nil, err
	}

	resp := &model.ReserveResponse{
		ReservationID: res.ID,
		SKU:           res.SKU,
		Quantity:      res.Quantity,
		ExpiresAt:     res.ExpiresAt.Format(time.RFC3339),
		TTLSeconds:    int(s.ttl / time.Second),
	}

	if claimed {
		if err := s.idempotency.Complete(ctx, userID, fingerprint, resp); err != nil {
			// The reservation stands; the slot falls back to its TTL.
			log.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to store idempotency payload")
		}
	}

	s.writeAudit(ctx, model.AuditReserve, userID, res.SKU, res.ID, map[string]any{
		"quantity":   res.Quantity,
		"expires_at": resp.ExpiresAt,
	})

	return resp, nil
}

// claimFingerprint resolves the idempotency mapping before any state change.
// It returns the stored response for a replay, or claims the slot for this
// request. A replay racing an in-flight original waits briefly for the
// result and fails with ErrIdempotencyInFlight rather than risking a second
// decrement.
func (s *ReservationService) claimFingerprint(ctx context.Context, userID, fingerprint string) (*model.ReserveResponse, bool, error) {
	for attempt := 0; attempt <= replayAttempts; attempt++ {
		resp, pending, err := s.idempotency.Lookup(ctx, userID, fingerprint)
		if err != nil {
			return nil, false, err
		}
		if resp != nil {
			return resp, false, nil
		}
		if !pending {
			ok, err := s.idempotency.BeginSlot(ctx, userID, fingerprint)
			if err != nil {
				return nil, false, err
			}
			if ok {
				return nil, true, nil
			}
			// Lost the claim race; loop to observe the holder's result.
		}
		if attempt == replayAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(replayWait):
		}
	}
	return nil, false, ErrIdempotencyInFlight
}

// Cancel releases a reservation owned by userID, restoring its units to the
// counter. Returns ErrReservationNotFound or ErrForbidden.
func (s *ReservationService) Cancel(ctx context.Context, userID, reservationID string) error {
	res, err := s.inventory.Release(ctx, reservationID, userID)
	if err != nil {
		return err
	}

	s.writeAudit(ctx, model.AuditCancel, userID, res.SKU, reservationID, map[string]any{
		"quantity": res.Quantity,
	})

	log.Info().
		Str("reservation_id", reservationID).
		Str("user_id", userID).
		Int("quantity", res.Quantity).
		Msg("reservation cancelled")
	return nil
}

// Expire finalises a past-due reservation without an ownership check;
// called by the sweeper only. Returns ErrAlreadyTerminal when confirm or
// cancel consumed the record first; nothing is mutated in that case.
func (s *ReservationService) Expire(ctx context.Context, reservationID string) error {
	res, err := s.inventory.Release(ctx, reservationID, "")
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return ErrAlreadyTerminal
		}
		return err
	}

	s.writeAudit(ctx, model.AuditExpire, res.UserID, res.SKU, reservationID, map[string]any{
		"quantity":   res.Quantity,
		"created_at": res.CreatedAt.Format(time.RFC3339),
		"expired_at": s.now().UTC().Format(time.RFC3339),
	})

	log.Info().
		Str("reservation_id", reservationID).
		Str("sku", res.SKU).
		Int("quantity", res.Quantity).
		Msg("expired reservation released")
	return nil
}

// DueReservations returns up to limit reservation ids past their deadline.
func (s *ReservationService) DueReservations(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	return s.inventory.Due(ctx, now, limit)
}

// writeAudit appends an audit event. The hot-state mutation has already
// committed by the time this runs, so failures are logged and not surfaced.
func (s *ReservationService) writeAudit(ctx context.Context, eventType, userID, sku, reservationID string, details map[string]any) {
	ev := &model.AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		SKU:           sku,
		ReservationID: reservationID,
		Details:       details,
		Timestamp:     s.now().UTC(),
	}
	if err := s.audit.Insert(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("event_type", eventType).
			Str("reservation_id", reservationID).
			Msg("audit write failed")
	}
}
