package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/model"
	"github.com/flexype/inventory-reservation/pkg/database"
)

// ReservationConsumer defines the optimistic consume operation the checkout
// coordinator needs from the hot-state store.
type ReservationConsumer interface {
	ConfirmConsume(ctx context.Context, id, ownerID string) (*model.Reservation, error)
}

// OrderRepositoryInterface defines the interface for order data access.
type OrderRepositoryInterface interface {
	InsertOrder(ctx context.Context, tx database.TxQuerier, order *model.Order) error
	InsertItems(ctx context.Context, tx database.TxQuerier, orderID string, items []model.OrderItem) error
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutService transforms live reservations into durable orders. The
// reservation record is consumed atomically in hot state; the order row and
// its line items land in a single durable transaction.
type CheckoutService struct {
	pool      TxBeginner
	inventory ReservationConsumer
	orders    OrderRepositoryInterface
	audit     AuditRepositoryInterface
	catalog   PriceCatalog
	now       func() time.Time
}

// NewCheckoutService creates a CheckoutService with the given pool,
// repositories and price catalogue.
func NewCheckoutService(
	pool *pgxpool.Pool,
	inventory ReservationConsumer,
	orders OrderRepositoryInterface,
	audit AuditRepositoryInterface,
	catalog PriceCatalog,
) *CheckoutService {
	return &CheckoutService{
		pool:      pool,
		inventory: inventory,
		orders:    orders,
		audit:     audit,
		catalog:   catalog,
		now:       time.Now,
	}
}

// NewCheckoutServiceWithTxBeginner creates a CheckoutService with a custom
// TxBeginner. Primarily used for testing.
func NewCheckoutServiceWithTxBeginner(
	pool TxBeginner,
	inventory ReservationConsumer,
	orders OrderRepositoryInterface,
	audit AuditRepositoryInterface,
	catalog PriceCatalog,
) *CheckoutService {
	return &CheckoutService{
		pool:      pool,
		inventory: inventory,
		orders:    orders,
		audit:     audit,
		catalog:   catalog,
		now:       time.Now,
	}
}

func newOrderID() string {
	u := uuid.New()
	return "ord_" + hex.EncodeToString(u[:])[:12]
}

// Confirm converts a reservation owned by userID into an order. The counter
// is not restored: the units are sold. Returns ErrReservationNotFound when
// the record is absent or the sweeper consumed it first, ErrForbidden on an
// ownership mismatch.
func (s *CheckoutService) Confirm(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error) {
	res, err := s.inventory.ConfirmConsume(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}

	price := s.catalog.Price(res.SKU)
	order := &model.Order{
		OrderID:     newOrderID(),
		UserID:      userID,
		Status:      model.StatusConfirmed,
		TotalAmount: price * float64(res.Quantity),
		CreatedAt:   s.now().UTC(),
		Items: []model.OrderItem{
			{SKU: res.SKU, Quantity: res.Quantity, PricePerUnit: price},
		},
	}

	if err := s.persistOrder(ctx, order); err != nil {
		// The reservation is already consumed in hot state; surface the
		// durable failure without retrying the consume.
		log.Error().
			Err(err).
			Str("reservation_id", reservationID).
			Str("order_id", order.OrderID).
			Msg("order write failed after reservation consume")
		return nil, err
	}

	s.writeAudit(ctx, model.AuditConfirm, userID, res.SKU, reservationID, map[string]any{
		"order_id":     order.OrderID,
		"quantity":     res.Quantity,
		"total_amount": order.TotalAmount,
	})

	log.Info().
		Str("order_id", order.OrderID).
		Str("reservation_id", reservationID).
		Str("user_id", userID).
		Msg("checkout confirmed")

	return &model.OrderResponse{
		OrderID: order.OrderID,
		Status:  order.Status,
		Total:   order.TotalAmount,
		Items:   order.Items,
	}, nil
}

func (s *CheckoutService) persistOrder(ctx context.Context, order *model.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	if err := s.orders.InsertOrder(ctx, tx, order); err != nil {
		return err
	}
	if err := s.orders.InsertItems(ctx, tx, order.OrderID, order.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetOrder retrieves an order with its line items.
// Returns ErrOrderNotFound if the order doesn't exist.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*model.OrderResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	return &model.OrderResponse{
		OrderID:   order.OrderID,
		UserID:    order.UserID,
		Status:    order.Status,
		Total:     order.TotalAmount,
		Items:     order.Items,
		CreatedAt: order.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *CheckoutService) writeAudit(ctx context.Context, eventType, userID, sku, reservationID string, details map[string]any) {
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
