package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when reserving against a SKU whose
	// counter has never been initialized
	ErrNotInitialized = errors.New("sku not initialized")

	// ErrReservationNotFound is returned when a reservation record is absent
	// (expired, already consumed, or never existed)
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrForbidden is returned when a user acts on a reservation they do not own
	ErrForbidden = errors.New("reservation belongs to another user")

	// ErrAlreadyTerminal is returned by expire when the record is already gone;
	// the benign race with confirm/cancel
	ErrAlreadyTerminal = errors.New("reservation already terminal")

	// ErrOrderNotFound is returned when an order cannot be found
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrIdempotencyInFlight is returned when a replayed fingerprint's original
	// request has not finished yet
	ErrIdempotencyInFlight = errors.New("original request still in flight")
)

// InsufficientStockError is returned when the available count is below the
// requested quantity. It carries the observed availability for the 409 payload.
type InsufficientStockError struct {
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}
