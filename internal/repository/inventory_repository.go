package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flexype/inventory-reservation/internal/model"
	"github.com/flexype/inventory-reservation/internal/service"
)

// Hot-state key layout. The counter holds the units neither reserved nor
// sold; the reservation record funds its hold for as long as it exists; the
// expiry index orders every active reservation by its deadline.
const (
	inventoryKeyPrefix   = "inventory:"
	reservationKeyPrefix = "reservation:"
	expiryIndexKey       = "expiring_reservations"
)

func inventoryKey(sku string) string {
	return inventoryKeyPrefix + sku
}

func reservationKey(id string) string {
	return reservationKeyPrefix + id
}

// reserveScript is the atomic check-and-decrement. The availability check,
// the decrement, the record write and the index insert execute as one unit;
// no other operation on the counter interleaves.
//
// KEYS[1] = inventory counter
// KEYS[2] = reservation record
// KEYS[3] = expiry index
// ARGV[1] = quantity
// ARGV[2] = record payload (JSON)
// ARGV[3] = reservation id
// ARGV[4] = expires_at (unix seconds, index score)
//
// Returns {1, remaining} on success, {0, available} on shortfall,
// {-1, 0} when the counter was never initialized.
var reserveScript = goredis.NewScript(`
local available = redis.call('GET', KEYS[1])
if available == false then
    return {-1, 0}
end
available = tonumber(available)
local quantity = tonumber(ARGV[1])
if available < quantity then
    return {0, available}
end
redis.call('DECRBY', KEYS[1], quantity)
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], tonumber(ARGV[4]), ARGV[3])
return {1, available - quantity}
`)

// releaseScript deletes a reservation record and restores its units, but
// only if the record still holds the exact payload the caller observed.
// A changed or absent record means confirm or a concurrent release won.
//
// KEYS[1] = reservation record
// KEYS[2] = expiry index
// KEYS[3] = inventory counter
// ARGV[1] = reservation id
// ARGV[2] = expected record payload
// ARGV[3] = quantity
//
// Returns 1 when released, 0 when the record is gone or changed.
var releaseScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false or current ~= ARGV[2] then
    return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('INCRBY', KEYS[3], tonumber(ARGV[3]))
return 1
`)

// InventoryRepository owns every hot-state mutation. The service layer and
// the sweeper only touch counters, records and the expiry index through it.
type InventoryRepository struct {
	client *goredis.Client
}

// NewInventoryRepository creates an InventoryRepository on the given client.
func NewInventoryRepository(client *goredis.Client) *InventoryRepository {
	return &InventoryRepository{client: client}
}

// Initialize sets the SKU counter to quantity, overwriting any prior value.
func (r *InventoryRepository) Initialize(ctx context.Context, sku string, quantity int64) (int64, error) {
	if err := r.client.Set(ctx, inventoryKey(sku), quantity, 0).Err(); err != nil {
		return 0, fmt.Errorf("initialize %s: %w", sku, err)
	}
	return quantity, nil
}

// Available returns the current counter value and whether the counter exists.
func (r *InventoryRepository) Available(ctx context.Context, sku string) (int64, bool, error) {
	val, err := r.client.Get(ctx, inventoryKey(sku)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get inventory %s: %w", sku, err)
	}
	return val, true, nil
}

// Reserve atomically funds a reservation: checks availability, decrements the
// counter, writes the record and inserts it into the expiry index.
// Returns service.ErrNotInitialized or *service.InsufficientStockError on the
// scripted failure paths.
func (r *InventoryRepository) Reserve(ctx context.Context, res *model.Reservation) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	vals, err := reserveScript.Run(ctx, r.client,
		[]string{inventoryKey(res.SKU), reservationKey(res.ID), expiryIndexKey},
		res.Quantity, payload, res.ID, res.ExpiresAt.Unix(),
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("reserve script: %w", err)
	}
	if len(vals) != 2 {
		return fmt.Errorf("reserve script: unexpected result %v", vals)
	}

	switch vals[0] {
	case 1:
		return nil
	case 0:
		return &service.InsufficientStockError{Available: vals[1]}
	case -1:
		return service.ErrNotInitialized
	default:
		return fmt.Errorf("reserve script: unexpected code %d", vals[0])
	}
}

// Get reads a reservation record. Returns nil, nil when the record is absent
// (the service layer decides what absence means).
func (r *InventoryRepository) Get(ctx context.Context, id string) (*model.Reservation, error) {
	res, _, err := r.getRaw(ctx, id)
	return res, err
}

func (r *InventoryRepository) getRaw(ctx context.Context, id string) (*model.Reservation, string, error) {
	data, err := r.client.Get(ctx, reservationKey(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("get reservation %s: %w", id, err)
	}

	var res model.Reservation
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, "", fmt.Errorf("decode reservation %s: %w", id, err)
	}
	res.ID = id
	return &res, data, nil
}

// Release deletes a reservation record and restores its units to the counter.
// When ownerID is non-empty the record must belong to that user. Returns the
// released reservation, service.ErrReservationNotFound when the record is
// absent or another operation consumed it first, or service.ErrForbidden on
// an ownership mismatch (nothing is mutated in that case).
func (r *InventoryRepository) Release(ctx context.Context, id, ownerID string) (*model.Reservation, error) {
	res, raw, err := r.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, service.ErrReservationNotFound
	}
	if ownerID != "" && res.UserID != ownerID {
		return nil, service.ErrForbidden
	}

	released, err := releaseScript.Run(ctx, r.client,
		[]string{reservationKey(id), expiryIndexKey, inventoryKey(res.SKU)},
		id, raw, res.Quantity,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("release script: %w", err)
	}
	if released != 1 {
		// Confirm or a concurrent release got there first.
		return nil, service.ErrReservationNotFound
	}
	return res, nil
}

// ConfirmConsume deletes a reservation record without touching the counter:
// the units are being sold, not returned. The delete is optimistic: the
// record key is watched, and if the sweeper removes it mid-flight the
// transaction aborts and the reservation is reported absent.
func (r *InventoryRepository) ConfirmConsume(ctx context.Context, id, ownerID string) (*model.Reservation, error) {
	key := reservationKey(id)
	var res *model.Reservation

	txf := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return service.ErrReservationNotFound
			}
			return fmt.Errorf("get reservation %s: %w", id, err)
		}

		var decoded model.Reservation
		if err := json.Unmarshal([]byte(data), &decoded); err != nil {
			return fmt.Errorf("decode reservation %s: %w", id, err)
		}
		decoded.ID = id

		if decoded.UserID != ownerID {
			return service.ErrForbidden
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, expiryIndexKey, id)
			return nil
		})
		if err != nil {
			return err
		}
		res = &decoded
		return nil
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return nil, service.ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// Due returns up to limit reservation ids whose deadline is at or before now,
// oldest first.
func (r *InventoryRepository) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, expiryIndexKey, &goredis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan expiry index: %w", err)
	}
	return ids, nil
}
