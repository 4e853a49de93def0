package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/formloft/formloft/internal/pkg/ratelimit"
)

// RateLimitMiddleware counts each request against the tenant's fixed-window
// quota, keyed by (tenant, client, origin IP, endpoint).
func RateLimitMiddleware(limiter *ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := strings.TrimSpace(c.Get("X-Client-ID"))
		if client == "" {
			client = "anon"
		}
		origin := c.IP()
		if origin == "" {
			origin = "unknown"
		}

		result := limiter.Allow(ratelimit.Key{
			Tenant:   c.Params("tenant"),
			Client:   client,
			Origin:   origin,
			Endpoint: c.Route().Path,
		})

		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Rate limit exceeded, try again later",
			})
		}
		return c.Next()
	}
}
