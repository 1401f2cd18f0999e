package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/middleware"
	"github.com/flexype/inventory-reservation/internal/model"
	"github.com/flexype/inventory-reservation/internal/service"
)

// HeaderIdempotencyKey carries the client-supplied fingerprint that
// deduplicates retried reserve calls.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// ReservationServiceInterface defines the interface for reservation business logic.
type ReservationServiceInterface interface {
	Initialize(ctx context.Context, sku string, quantity int64) (int64, error)
	Status(ctx context.Context, sku string) (*model.InventoryStatus, error)
	Reserve(ctx context.Context, userID string, req *model.ReserveRequest, fingerprint string) (*model.ReserveResponse, error)
}

// InventoryHandler handles HTTP requests for inventory operations.
type InventoryHandler struct {
	service   ReservationServiceInterface
	validator *validator.Validate
}

// NewInventoryHandler creates a new InventoryHandler with the given service and validator.
func NewInventoryHandler(svc ReservationServiceInterface, v *validator.Validate) *InventoryHandler {
	return &InventoryHandler{service: svc, validator: v}
}

// formatReserveValidationError converts validator errors to response messages.
func formatReserveValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "SKU":
				if tag == "required" {
					return "invalid request: sku is required"
				}
				if tag == "notblank" {
					return "invalid request: sku cannot be whitespace only"
				}
				if tag == "max" {
					return "invalid request: sku exceeds maximum length of 50"
				}
				if tag == "skuformat" {
					return "invalid request: sku must contain only letters, digits and dashes"
				}
				return "invalid request: sku is invalid"
			case "Quantity":
				if tag == "required" {
					return "invalid request: quantity is required"
				}
				if tag == "gte" {
					return "invalid request: quantity must be at least 1"
				}
				return "invalid request: quantity is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// Initialize handles POST /v1/inventory/:sku/initialize requests. This is an
// administrative reset: it overwrites the counter unconditionally.
func (h *InventoryHandler) Initialize(c *fiber.Ctx) error {
	sku := c.Params("sku")
	if sku == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: sku is required"})
	}

	quantity, err := strconv.ParseInt(c.Query("quantity"), 10, 64)
	if err != nil || quantity < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: quantity must be a non-negative integer",
		})
	}

	available, err := h.service.Initialize(c.Context(), sku, quantity)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().Err(err).Str("sku", sku).Msg("failed to initialize inventory")
		return backendUnavailable(c)
	}

	log.Info().Str("sku", sku).Int64("available", available).Msg("inventory initialized")

	return c.JSON(model.InitializeResponse{SKU: sku, Available: available})
}

// Status handles GET /v1/inventory/:sku requests.
func (h *InventoryHandler) Status(c *fiber.Ctx) error {
	sku := c.Params("sku")

	status, err := h.service.Status(c.Context(), sku)
	if err != nil {
		log.Error().Err(err).Str("sku", sku).Msg("failed to get inventory status")
		return backendUnavailable(c)
	}
	return c.JSON(status)
}

// Reserve handles POST /v1/inventory/reserve requests, the hot path.
func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	var req model.ReserveRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatReserveValidationError(err)})
	}

	userID := middleware.UserID(c)
	fingerprint := c.Get(HeaderIdempotencyKey)

	resp, err := h.service.Reserve(c.Context(), userID, &req, fingerprint)
	if err != nil {
		var insufficient *service.InsufficientStockError
		if errors.As(err, &insufficient) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":     "insufficient inventory",
				"available": insufficient.Available,
			})
		}
		if errors.Is(err, service.ErrNotInitialized) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "sku not initialized"})
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, service.ErrIdempotencyInFlight) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "original request still in flight, retry shortly"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", userID).
			Str("sku", req.SKU).
			Int("quantity", req.Quantity).
			Msg("failed to reserve inventory")
		return backendUnavailable(c)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", userID).
		Str("reservation_id", resp.ReservationID).
		Str("sku", resp.SKU).
		Int("quantity", resp.Quantity).
		Msg("inventory reserved")

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// backendUnavailable reports an unreachable hot or durable store. The
// request may be retried; a reserve retried with the same fingerprint never
// double-decrements.
func backendUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "backend unavailable"})
}
