package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flexype/inventory-reservation/internal/model"
)

const idempotencyKeyPrefix = "idempotency:"

// pendingMarker occupies a fingerprint slot while the original request is
// still in flight, so a concurrent replay cannot trigger a second decrement.
const pendingMarker = "__pending__"

func idempotencyKey(userID, fingerprint string) string {
	return idempotencyKeyPrefix + userID + ":" + fingerprint
}

// IdempotencyRepository maps (user, fingerprint) to the response of the
// original reserve call. The slot is claimed before the decrement and
// replaced with the result after, so at most one decrement happens per
// fingerprint.
type IdempotencyRepository struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewIdempotencyRepository creates an IdempotencyRepository. ttl should be at
// least as long as the reservation TTL so replays during the hold window are
// recognised.
func NewIdempotencyRepository(client goredis.Cmdable, ttl time.Duration) *IdempotencyRepository {
	return &IdempotencyRepository{client: client, ttl: ttl}
}

// Lookup returns the stored response for a fingerprint, or pending=true when
// the slot is claimed but the original request has not completed.
func (r *IdempotencyRepository) Lookup(ctx context.Context, userID, fingerprint string) (*model.ReserveResponse, bool, error) {
	data, err := r.client.Get(ctx, idempotencyKey(userID, fingerprint)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup idempotency: %w", err)
	}
	if data == pendingMarker {
		return nil, true, nil
	}

	var resp model.ReserveResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return nil, false, fmt.Errorf("decode idempotency payload: %w", err)
	}
	return &resp, false, nil
}

// BeginSlot claims the fingerprint slot. Returns false when another request
// already holds it.
func (r *IdempotencyRepository) BeginSlot(ctx context.Context, userID, fingerprint string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKey(userID, fingerprint), pendingMarker, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency slot: %w", err)
	}
	return ok, nil
}

// Complete replaces the pending slot with the reserve response.
func (r *IdempotencyRepository) Complete(ctx context.Context, userID, fingerprint string, resp *model.ReserveResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal idempotency payload: %w", err)
	}
	if err := r.client.Set(ctx, idempotencyKey(userID, fingerprint), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency payload: %w", err)
	}
	return nil
}

// Abort releases the slot after a failed reserve so the client can retry
// with the same fingerprint once the input is fixed.
func (r *IdempotencyRepository) Abort(ctx context.Context, userID, fingerprint string) error {
	if err := r.client.Del(ctx, idempotencyKey(userID, fingerprint)).Err(); err != nil {
		return fmt.Errorf("release idempotency slot: %w", err)
	}
	return nil
}
