package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to the Pinger interface.
type RedisPinger struct {
	Client *goredis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// HealthHandler handles health check requests against both stores.
type HealthHandler struct {
	db  Pinger
	hot Pinger
}

// NewHealthHandler creates a new HealthHandler with the given store pingers.
func NewHealthHandler(db, hot Pinger) *HealthHandler {
	return &HealthHandler{db: db, hot: hot}
}

// Check handles GET /health requests. Either store being unreachable makes
// the instance unhealthy.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.hot.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: hot store unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "hot store unreachable",
		})
	}
	if err := h.db.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}
