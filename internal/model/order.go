package model

import "time"

// Order is a confirmed purchase in the durable store. Created once by the
// checkout coordinator, never updated.
type Order struct {
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
	Items       []OrderItem `json:"items"`
}

// OrderItem is a line item of an order.
type OrderItem struct {
	SKU          string  `json:"sku"`
	Quantity     int     `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
}

// OrderResponse is the API response DTO for a confirmed checkout and for
// GET /v1/checkout/orders/:order_id.
type OrderResponse struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id,omitempty"`
	Status    string      `json:"status"`
	Total     float64     `json:"total"`
	Items     []OrderItem `json:"items"`
	CreatedAt string      `json:"created_at,omitempty"` // RFC 3339 UTC
}

// Audit event types written to the durable audit log.
const (
	AuditReserve         = "reserve"
	AuditConfirm         = "confirm"
	AuditCancel          = "cancel"
	AuditExpire          = "expire"
	AuditOversellBlocked = "oversell_blocked"
)

// AuditEvent is an append-only durable record of an inventory event.
type AuditEvent struct {
	EventType     string
	UserID        string
	SKU           string
	ReservationID string
	Details       map[string]any
	Timestamp     time.Time
}
