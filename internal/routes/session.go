package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/accessgate/internal/access"
	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/middleware"
)

type identityView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	VerifiedAt    *time.Time `json:"email_verified_at,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
}

type sessionView struct {
	Scope         string        `json:"scope"`
	Phase         string        `json:"phase"`
	Authenticated bool          `json:"authenticated"`
	Loading       bool          `json:"loading"`
	Identity      *identityView `json:"identity,omitempty"`
}

func viewSession(id string, phase auth.Phase, s auth.Session) sessionView {
	v := sessionView{Scope: id, Phase: phase.String(), Authenticated: s.Authenticated, Loading: s.Loading}
	if s.Identity != nil {
		v.Identity = &identityView{
			ID:            s.Identity.ID,
			Email:         s.Identity.Email,
			EmailVerified: s.Identity.EmailVerified(),
			VerifiedAt:    s.Identity.EmailVerifiedAt,
			DisplayName:   s.Identity.DisplayName,
		}
	}
	return v
}

// RegisterSessionRoutes exposes the session and the guard's verdicts.
func RegisterSessionRoutes(r fiber.Router, guard *access.Guard) {
	r.Get("/session", func(c *fiber.Ctx) error {
		sess := middleware.ScopeFrom(c)
		return c.JSON(viewSession(sess.ID, sess.Manager.Phase(), sess.Manager.Snapshot()))
	})

	r.Get("/access", func(c *fiber.Ctx) error {
		sess := middleware.ScopeFrom(c)
		dest := access.Destination(c.Query("destination", string(access.Protected)))
		d := guard.Current(c.UserContext(), sess.Manager, dest)
		return c.JSON(fiber.Map{"destination": dest, "decision": d})
	})

	r.Get("/onboarding", func(c *fiber.Ctx) error {
		sess := middleware.ScopeFrom(c)
		dest := access.Destination(c.Query("destination", string(access.Protected)))
		return respond(c, sess.Controller.Resolve(c.UserContext(), dest), fiber.StatusOK)
	})
}
