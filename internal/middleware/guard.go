package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/accessgate/internal/access"
)

// RequireAccess lets the request through only when the guard allows dest.
// A redirect answers 409 with the decision; a pending session answers 503.
func RequireAccess(guard *access.Guard, dest access.Destination) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := ScopeFrom(c)
		if sess == nil {
			return fiber.NewError(fiber.StatusInternalServerError, "scope middleware missing")
		}
		d := guard.Current(c.UserContext(), sess.Manager, dest)
		switch d.Kind {
		case access.Allow:
			return c.Next()
		case access.Pending:
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"decision": d})
		default:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"decision": d})
		}
	}
}
