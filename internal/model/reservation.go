package model

import "time"

// Reservation statuses. A reservation record living in hot state is always
// active; the terminal statuses are only ever materialised in the durable
// store (order row for confirmed, audit row for cancelled/expired).
const (
	StatusActive    = "active"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Reservation is the hot-state record of a time-bounded hold. While the
// record exists its quantity is subtracted from the SKU counter.
type Reservation struct {
	ID        string    `json:"-"` // key, not part of the stored payload
	UserID    string    `json:"user_id"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InitializeResponse is the API response DTO for POST /v1/inventory/:sku/initialize.
type InitializeResponse struct {
	SKU       string `json:"sku"`
	Available int64  `json:"available"`
}

// InventoryStatus is the API response DTO for GET /v1/inventory/:sku.
type InventoryStatus struct {
	SKU           string `json:"sku"`
	Available     int64  `json:"available"`
	Uninitialized bool   `json:"uninitialized,omitempty"`
}

// ReserveRequest is the DTO for reserving inventory.
// The static upper bound matches the default quantity cap; the service
// re-checks against the configured maximum.
type ReserveRequest struct {
	SKU      string `json:"sku" validate:"required,notblank,max=50,skuformat"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
}

// ReserveResponse is the DTO for a successful reservation. It is also the
// payload cached under the idempotency mapping, so replays return it verbatim.
type ReserveResponse struct {
	ReservationID string `json:"reservation_id"`
	SKU           string `json:"sku"`
	Quantity      int    `json:"quantity"`
	ExpiresAt     string `json:"expires_at"` // RFC 3339 UTC
	TTLSeconds    int    `json:"ttl_seconds"`
}

// ConfirmRequest is the DTO for confirming a checkout.
type ConfirmRequest struct {
	ReservationID string `json:"reservation_id" validate:"required,notblank,max=30"`
}

// CancelRequest is the DTO for cancelling a reservation.
type CancelRequest struct {
	ReservationID string `json:"reservation_id" validate:"required,notblank,max=30"`
}

// CancelResponse is the DTO for a successful cancellation.
type CancelResponse struct {
	OK bool `json:"ok"`
}
