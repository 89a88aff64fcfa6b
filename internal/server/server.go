package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/accessgate/internal/access"
	"github.com/congo-pay/accessgate/internal/config"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/routes"
	"github.com/congo-pay/accessgate/internal/scope"
)

// Backends are the shared services every browser scope is wired to.
type Backends struct {
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Provider *identity.Provider
	Scopes   scope.Deps
}

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	registry *scope.Registry
	stop     context.CancelFunc
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, b Backends, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: routes.ErrorHandler(logger),
	})

	guard := access.NewGuard(logger)
	deps := b.Scopes
	deps.Provider = b.Provider
	deps.Guard = guard
	registry := scope.NewRegistry(deps, scope.Config{
		IdleTTL:       cfg.ScopeIdleTTL,
		Timeout:       cfg.ProviderTimeout,
		PINPolicy:     PINPolicy(cfg),
		ResetRedirect: cfg.PublicBaseURL + "/reset-password",
		Onboarding:    OnboardingConfig(cfg),
	}, logger)

	if err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       b.DB,
		Cache:    b.Cache,
		Logger:   logger,
		Provider: b.Provider,
		Registry: registry,
		Guard:    guard,
	}); err != nil {
		registry.Close()
		return nil, err
	}

	ctx, stop := context.WithCancel(context.Background())
	go registry.Run(ctx)

	return &Server{app: app, cfg: cfg, registry: registry, stop: stop}, nil
}

// App exposes the Fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server, then tears down every scope.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.stop()
	s.registry.Close()
	return err
}
