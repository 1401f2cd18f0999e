package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/middleware"
	"github.com/flexype/inventory-reservation/internal/model"
	"github.com/flexype/inventory-reservation/internal/service"
)

// CheckoutServiceInterface defines the interface for checkout business logic.
type CheckoutServiceInterface interface {
	Confirm(ctx context.Context, userID, reservationID string) (*model.OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*model.OrderResponse, error)
}

// ReservationCanceller defines the cancel operation the checkout surface
// exposes.
type ReservationCanceller interface {
	Cancel(ctx context.Context, userID, reservationID string) error
}

// CheckoutHandler handles HTTP requests for confirm, cancel and order lookup.
type CheckoutHandler struct {
	checkout     CheckoutServiceInterface
	reservations ReservationCanceller
	validator    *validator.Validate
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout CheckoutServiceInterface, reservations ReservationCanceller, v *validator.Validate) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, reservations: reservations, validator: v}
}

// formatReservationIDValidationError converts validator errors to response messages.
func formatReservationIDValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			switch fe.Tag() {
			case "required":
				return "invalid request: reservation_id is required"
			case "notblank":
				return "invalid request: reservation_id cannot be whitespace only"
			case "max":
				return "invalid request: reservation_id exceeds maximum length of 30"
			}
		}
	}
	return "invalid request"
}

// Confirm handles POST /v1/checkout/confirm requests. A reservation that the
// sweeper already expired confirms as not found.
func (h *CheckoutHandler) Confirm(c *fiber.Ctx) error {
	var req model.ConfirmRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatReservationIDValidationError(err)})
	}

	userID := middleware.UserID(c)

	resp, err := h.checkout.Confirm(c.Context(), userID, req.ReservationID)
	if err != nil {
		if errors.Is(err, service.ErrReservationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "reservation not found or expired"})
		}
		if errors.Is(err, service.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "reservation belongs to another user"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", userID).
			Str("reservation_id", req.ReservationID).
			Msg("failed to confirm reservation")
		return backendUnavailable(c)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", userID).
		Str("reservation_id", req.ReservationID).
		Str("order_id", resp.OrderID).
		Msg("checkout confirmed")

	return c.JSON(resp)
}

// Cancel handles POST /v1/checkout/cancel requests.
func (h *CheckoutHandler) Cancel(c *fiber.Ctx) error {
	var req model.CancelRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatReservationIDValidationError(err)})
	}

	userID := middleware.UserID(c)

	if err := h.reservations.Cancel(c.Context(), userID, req.ReservationID); err != nil {
		if errors.Is(err, service.ErrReservationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "reservation not found or expired"})
		}
		if errors.Is(err, service.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "reservation belongs to another user"})
		}
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("reservation_id", req.ReservationID).
			Msg("failed to cancel reservation")
		return backendUnavailable(c)
	}

	return c.JSON(model.CancelResponse{OK: true})
}

// GetOrder handles GET /v1/checkout/orders/:order_id requests.
func (h *CheckoutHandler) GetOrder(c *fiber.Ctx) error {
	orderID := c.Params("order_id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: order_id is required"})
	}

	resp, err := h.checkout.GetOrder(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		log.Error().Err(err).Str("order_id", orderID).Msg("failed to get order")
		return backendUnavailable(c)
	}

	return c.JSON(resp)
}
