package middlewares

import (
	"crypto/subtle"
	"os"

	"github.com/gofiber/fiber/v2"
)

// OpsToken guards mutating ops endpoints with a shared secret (OPS_TOKEN).
// Without OPS_TOKEN those endpoints are disabled.
func OpsToken() fiber.Handler {
	secret := os.Getenv("OPS_TOKEN")
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return fiber.NewError(fiber.StatusForbidden, "ops endpoint disabled (OPS_TOKEN not set)")
		}
		got := c.Get("X-Ops-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid ops token")
		}
		return c.Next()
	}
}
