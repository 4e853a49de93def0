package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

// KeyOperatorEmail is the Locals key carrying the authenticated operator
// identity for downstream handlers.
const KeyOperatorEmail = "OPERATOR_EMAIL"

// AdminAuthMiddleware authorizes admin requests against the single
// configured operator identity of the tenant. The caller must present the
// operator email and the admin token matching the tenant's bcrypt hash.
func AdminAuthMiddleware(reg *tenants.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := c.Params("tenant")
		if !reg.IsConfigured(tenantID) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_tenant", "message": "Tenant is not configured"})
		}
		cfg := reg.Get(tenantID)

		operator := strings.TrimSpace(c.Get("X-Operator-Email"))
		token := strings.TrimSpace(c.Get("X-Admin-Token"))
		if operator == "" || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing operator credentials"})
		}

		if !strings.EqualFold(operator, cfg.AdminEmail) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Operator is not the tenant administrator"})
		}
		if cfg.AdminTokenHash == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Tenant has no admin token configured"})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(cfg.AdminTokenHash), []byte(token)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin token"})
		}

		c.Locals(KeyOperatorEmail, cfg.AdminEmail)
		return c.Next()
	}
}
