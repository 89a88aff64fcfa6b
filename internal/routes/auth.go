package routes

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/middleware"
	"github.com/congo-pay/accessgate/internal/onboarding"
)

const maxVerificationWait = 30 * time.Second

type credentialsRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name"`
}

// RegisterAuthRoutes wires credential endpoints. rateLimiter guards sign-in.
func RegisterAuthRoutes(r fiber.Router, provider *identity.Provider, rateLimiter fiber.Handler, pollInterval time.Duration) {
	group := r.Group("/auth")

	group.Post("/sign-up", func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		sess := middleware.ScopeFrom(c)
		out := sess.Controller.SubmitSignUp(c.UserContext(), req.Email, req.Password, req.ConfirmPassword, req.DisplayName)
		return respond(c, out, fiber.StatusCreated)
	})

	group.Post("/sign-in", rateLimiter, func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.SubmitSignIn(c.UserContext(), req.Email, req.Password), fiber.StatusOK)
	})

	group.Post("/sign-out", func(c *fiber.Ctx) error {
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.SignOut(c.UserContext()), fiber.StatusOK)
	})

	group.Post("/password/reset", func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		if err := c.BodyParser(&req); err != nil || req.Email == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email is required")
		}
		if err := middleware.ScopeFrom(c).Manager.ResetPassword(c.UserContext(), req.Email); err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "If an account exists for this email, a reset link has been sent.",
		})
	})

	group.Put("/password", func(c *fiber.Ctx) error {
		var req struct {
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "password is required")
		}
		if err := middleware.ScopeFrom(c).Manager.UpdatePassword(c.UserContext(), req.Password); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	group.Post("/verification/resend", func(c *fiber.Ctx) error {
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.ResendVerification(c.UserContext()), fiber.StatusAccepted)
	})

	// Long-polls until the address is verified or wait elapses.
	group.Get("/verification", func(c *fiber.Ctx) error {
		wait := pollInterval
		if raw := c.Query("wait"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "wait must be a duration such as 10s")
			}
			wait = d
		}
		if wait > maxVerificationWait {
			wait = maxVerificationWait
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), wait)
		defer cancel()

		polls := 0
		out, err := middleware.ScopeFrom(c).Controller.AwaitVerification(ctx, func(int) { polls++ })
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return c.JSON(fiber.Map{
			"screen":   out.Screen,
			"decision": out.Decision,
			"polls":    polls,
			"verified": err == nil && out.Screen != onboarding.ScreenSignIn,
		})
	})

	group.Get("/confirm", func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "token is required")
		}
		id, err := provider.ConfirmEmail(c.UserContext(), token)
		if errors.Is(err, identity.ErrInvalidToken) {
			return fiber.NewError(fiber.StatusBadRequest, "confirmation link is invalid or expired")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"email": id.Email, "email_verified": id.EmailVerified()})
	})

	group.Get("/recover", func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "token is required")
		}
		sess := middleware.ScopeFrom(c)
		if _, err := sess.Manager.RecoverSession(c.UserContext(), token); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"session": viewSession(sess.ID, sess.Manager.Phase(), sess.Manager.Snapshot()),
			"message": "Choose a new password.",
		})
	})
}
