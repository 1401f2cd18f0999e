package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexype/inventory-reservation/internal/middleware"
	"github.com/flexype/inventory-reservation/internal/model"
	"github.com/flexype/inventory-reservation/internal/service"
	"github.com/flexype/inventory-reservation/internal/validator"
)

// mockCheckoutService is a mock implementation of CheckoutServiceInterface.
type mockCheckoutService struct {
	confirmFn  func(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error)
	getOrderFn func(ctx context.Context, orderID string) (*model.OrderResponse, error)
}

func (m *mockCheckoutService) Confirm(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error) {
	if m.confirmFn != nil {
		return m.confirmFn(ctx, userID, reservationID)
	}
	return nil, nil
}

func (m *mockCheckoutService) GetOrder(ctx context.Context, orderID string) (*model.OrderResponse, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, orderID)
	}
	return nil, service.ErrOrderNotFound
}

// mockCanceller is a mock implementation of ReservationCanceller.
type mockCanceller struct {
	cancelFn func(ctx context.Context, userID, reservationID string) error
}

func (m *mockCanceller) Cancel(ctx context.Context, userID, reservationID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID, reservationID)
	}
	return nil
}

func setupCheckoutTestApp(mockSvc *mockCheckoutService, mockCancel *mockCanceller) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDKey, "user_001")
		return c.Next()
	})
	h := NewCheckoutHandler(mockSvc, mockCancel, validator.New())
	app.Post("/v1/checkout/confirm", h.Confirm)
	app.Post("/v1/checkout/cancel", h.Cancel)
	app.Get("/v1/checkout/orders/:order_id", h.GetOrder)
	return app
}

func TestConfirm_Success(t *testing.T) {
	var capturedUserID, capturedReservationID string
	mockSvc := &mockCheckoutService{
		confirmFn: func(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error) {
			capturedUserID = userID
			capturedReservationID = reservationID
			return &model.OrderResponse{
				OrderID: "ord_abc123def456",
				Status:  model.StatusConfirmed,
				Total:   59.98,
				Items: []model.OrderItem{
					{SKU: "FLASH-001", Quantity: 2, PricePerUnit: 29.99},
				},
			}, nil
		},
	}
	app := setupCheckoutTestApp(mockSvc, &mockCanceller{})

	body := `{"reservation_id": "rsv_abc123def456"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "Expected 200 OK")
	assert.Equal(t, "user_001", capturedUserID)
	assert.Equal(t, "rsv_abc123def456", capturedReservationID)

	var result model.OrderResponse
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "ord_abc123def456", result.OrderID)
	assert.Equal(t, model.StatusConfirmed, result.Status)
	assert.InDelta(t, 59.98, result.Total, 0.001)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "FLASH-001", result.Items[0].SKU)
}

func TestConfirm_ReservationNotFound(t *testing.T) {
	mockSvc := &mockCheckoutService{
		confirmFn: func(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error) {
			return nil, service.ErrReservationNotFound
		},
	}
	app := setupCheckoutTestApp(mockSvc, &mockCanceller{})

	body := `{"reservation_id": "rsv_gone"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "Expired and unknown reservations look identical")

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "reservation not found or expired", result["error"], "Exact error message required")
}

func TestConfirm_Forbidden(t *testing.T) {
	mockSvc := &mockCheckoutService{
		confirmFn: func(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error) {
			return nil, service.ErrForbidden
		},
	}
	app := setupCheckoutTestApp(mockSvc, &mockCanceller{})

	body := `{"reservation_id": "rsv_other_user"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "reservation belongs to another user", result["error"])
}

func TestConfirm_MissingReservationID(t *testing.T) {
	app := setupCheckoutTestApp(&mockCheckoutService{}, &mockCanceller{})

	body := `{}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "invalid request: reservation_id is required", result["error"], "Exact error message required")
}

func TestConfirm_MalformedJSON(t *testing.T) {
	app := setupCheckoutTestApp(&mockCheckoutService{}, &mockCanceller{})

	body := `{not valid json}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "invalid request body", result["error"])
}

func TestConfirm_BackendUnavailable(t *testing.T) {
	mockSvc := &mockCheckoutService{
		confirmFn: func(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	app := setupCheckoutTestApp(mockSvc, &mockCanceller{})

	body := `{"reservation_id": "rsv_abc123def456"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestCancel_Success(t *testing.T) {
	var capturedReservationID string
	mockCancel := &mockCanceller{
		cancelFn: func(ctx context.Context, userID, reservationID string) error {
			capturedReservationID = reservationID
			return nil
		},
	}
	app := setupCheckoutTestApp(&mockCheckoutService{}, mockCancel)

	body := `{"reservation_id": "rsv_abc123def456"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/cancel", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "rsv_abc123def456", capturedReservationID)

	var result map[string]bool
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.True(t, result["ok"])
}

func TestCancel_NotFound(t *testing.T) {
	mockCancel := &mockCanceller{
		cancelFn: func(ctx context.Context, userID, reservationID string) error {
			return service.ErrReservationNotFound
		},
	}
	app := setupCheckoutTestApp(&mockCheckoutService{}, mockCancel)

	body := `{"reservation_id": "rsv_gone"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/cancel", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCancel_Forbidden(t *testing.T) {
	mockCancel := &mockCanceller{
		cancelFn: func(ctx context.Context, userID, reservationID string) error {
			return service.ErrForbidden
		},
	}
	app := setupCheckoutTestApp(&mockCheckoutService{}, mockCancel)

	body := `{"reservation_id": "rsv_other_user"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/cancel", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGetOrder_Success(t *testing.T) {
	mockSvc := &mockCheckoutService{
		getOrderFn: func(ctx context.Context, orderID string) (*model.OrderResponse, error) {
			return &model.OrderResponse{
				OrderID:   orderID,
				UserID:    "user_001",
				Status:    model.StatusConfirmed,
				Total:     29.99,
				Items:     []model.OrderItem{{SKU: "FLASH-001", Quantity: 1, PricePerUnit: 29.99}},
				CreatedAt: "2026-08-25T12:00:00Z",
			}, nil
		},
	}
	app := setupCheckoutTestApp(mockSvc, &mockCanceller{})

	req := httptest.NewRequest(http.MethodGet, "/v1/checkout/orders/ord_abc123def456", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result model.OrderResponse
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "ord_abc123def456", result.OrderID)
	assert.Equal(t, "user_001", result.UserID)
	require.Len(t, result.Items, 1)
}

func TestGetOrder_NotFound(t *testing.T) {
	mockSvc := &mockCheckoutService{
		getOrderFn: func(ctx context.Context, orderID string) (*model.OrderResponse, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	app := setupCheckoutTestApp(mockSvc, &mockCanceller{})

	req := httptest.NewRequest(http.MethodGet, "/v1/checkout/orders/ord_missing", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "order not found", result["error"], "Exact error message required")
}
