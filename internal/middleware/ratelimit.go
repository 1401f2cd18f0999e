package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/config"
)

// rateLimitScript implements a fixed-window counter. The INCR and the
// initial EXPIRE execute atomically so the window cannot leak.
//
// KEYS[1] = ratelimit:{user}:{path}
// ARGV[1] = window seconds
// ARGV[2] = max requests per window
//
// Returns {1, 0} when admitted, {0, retry_after_seconds} when over the limit.
var rateLimitScript = goredis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
if current > tonumber(ARGV[2]) then
    local ttl = redis.call('TTL', KEYS[1])
    if ttl < 0 then
        ttl = tonumber(ARGV[1])
    end
    return {0, ttl}
end
return {1, 0}
`)

// RateLimit gates requests per (user, path) against a fixed window. It fails
// open when the hot-state store errors. Must run after RequireAuth.
func RateLimit(cfg config.RateLimitConfig, client *goredis.Client) fiber.Handler {
	if !cfg.Enabled || client == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Next()
		}

		key := "ratelimit:" + userID + ":" + c.Path()
		vals, err := rateLimitScript.Run(c.Context(), client,
			[]string{key}, cfg.WindowSeconds, cfg.PerWindow,
		).Int64Slice()
		if err != nil || len(vals) != 2 {
			log.Warn().Err(err).Str("user_id", userID).Msg("rate limiter unavailable, admitting request")
			return c.Next()
		}

		if vals[0] != 1 {
			retryAfter := vals[1]
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}
