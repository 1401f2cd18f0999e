package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/flexype/inventory-reservation/internal/auth"
)

// UserIDKey is the fiber locals key under which the verified user id is
// stored for handlers.
const UserIDKey = "user_id"

// RequireAuth validates the Authorization bearer token and injects the
// verified user id into the request locals. Requests without a valid token
// get 401.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		userID, err := auth.ParseUserID(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// UserID returns the verified user id for the request, or "" when the auth
// middleware did not run.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(UserIDKey).(string); ok {
		return id
	}
	return ""
}
