package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flexype/inventory-reservation/internal/model"
	"github.com/flexype/inventory-reservation/pkg/database"
)

// OrderPoolInterface defines the database operations needed by OrderRepository.
type OrderPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OrderRepository provides data access for orders using pgx.
type OrderRepository struct {
	pool OrderPoolInterface
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithPool creates a new OrderRepository with a custom pool
// interface. This is primarily used for testing.
func NewOrderRepositoryWithPool(pool OrderPoolInterface) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// InsertOrder inserts the order row within a transaction.
func (r *OrderRepository) InsertOrder(ctx context.Context, tx database.TxQuerier, order *model.Order) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO orders (order_id, user_id, status, total_amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		order.OrderID, order.UserID, order.Status, order.TotalAmount, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertItems inserts the order's line items within the same transaction.
func (r *OrderRepository) InsertItems(ctx context.Context, tx database.TxQuerier, orderID string, items []model.OrderItem) error {
	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, sku, quantity, price_per_unit) VALUES ($1, $2, $3, $4)`,
			orderID, item.SKU, item.Quantity, item.PricePerUnit)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// GetByID retrieves an order with its line items.
// Returns nil, nil if the order is not found (service layer handles this).
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.pool.QueryRow(ctx,
		`SELECT order_id, user_id, status, total_amount, created_at FROM orders WHERE order_id = $1`,
		orderID).Scan(
		&order.OrderID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT sku, quantity, price_per_unit FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items %s: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.SKU, &item.Quantity, &item.PricePerUnit); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	// Return empty slice, not nil
	if order.Items == nil {
		order.Items = []model.OrderItem{}
	}

	return &order, nil
}
