package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/accessgate/internal/scope"
)

const (
	// ScopeCookie carries the browser session id. It has no expiry so it
	// dies with the browser session.
	ScopeCookie = "ag_scope"
	// ScopeHeader lets non-browser clients pin a scope explicitly.
	ScopeHeader = "X-Session-Scope"

	scopeLocal = "scope"
)

// Scope resolves the caller's browser session, minting one when the request
// carries none, and stores it on the context.
func Scope(reg *scope.Registry, secureCookie bool, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(ScopeHeader)
		if id == "" {
			id = c.Cookies(ScopeCookie)
		}
		if !scope.ValidID(id) {
			id = scope.NewID()
		}

		sess, err := reg.Get(c.UserContext(), id)
		if errors.Is(err, scope.ErrClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "shutting down")
		}
		if err != nil {
			logger.Error("scope resolution failed", slog.String("scope", id), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "session unavailable")
		}

		c.Cookie(&fiber.Cookie{
			Name:     ScopeCookie,
			Value:    id,
			Path:     "/",
			HTTPOnly: true,
			Secure:   secureCookie,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Set(ScopeHeader, id)
		c.Locals(scopeLocal, sess)
		return c.Next()
	}
}

// ScopeFrom returns the session Scope stored on c, or nil.
func ScopeFrom(c *fiber.Ctx) *scope.Session {
	sess, _ := c.Locals(scopeLocal).(*scope.Session)
	return sess
}
