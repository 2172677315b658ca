package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/lostfound-go-api/internal/utils"
)

// WithAuth wraps a handler so it only runs for requests carrying an authenticated identity.
func WithAuth(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUserID(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		return handler(c)
	}
}
