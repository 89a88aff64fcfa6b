package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/accessgate/internal/access"
	"github.com/congo-pay/accessgate/internal/config"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/middleware"
	"github.com/congo-pay/accessgate/internal/scope"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Provider *identity.Provider
	Registry *scope.Registry
	Guard    *access.Guard
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	idempotent := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	api := app.Group("/api/v1", middleware.Scope(d.Registry, !d.Cfg.IsDev(), d.Logger))
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterSessionRoutes(api, d.Guard)
	RegisterAuthRoutes(api, d.Provider, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRatePerMinute), d.Cfg.VerifyPollInterval)
	RegisterProfileRoutes(api, idempotent)

	protected := api.Group("/protected", middleware.RequireAccess(d.Guard, access.Protected))
	protected.Get("/ping", protectedPing)
	return nil
}

// protectedPing answers for the signed-in identity. A sign-out landing after
// RequireAccess leaves no identity; that is reported like a guard redirect.
func protectedPing(c *fiber.Ctx) error {
	snapshot := middleware.ScopeFrom(c).Manager.Snapshot()
	if snapshot.Identity == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"decision": access.RedirectTo(access.TargetSignIn)})
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"identity_id": snapshot.Identity.ID,
	})
}
