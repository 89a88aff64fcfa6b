package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/congo-pay/accessgate/internal/config"
	"github.com/congo-pay/accessgate/internal/directory"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/infra"
	"github.com/congo-pay/accessgate/internal/logging"
	"github.com/congo-pay/accessgate/internal/notification"
	"github.com/congo-pay/accessgate/internal/pin"
	"github.com/congo-pay/accessgate/internal/profile"
	"github.com/congo-pay/accessgate/internal/scope"
	"github.com/congo-pay/accessgate/internal/server"
)

const devTokenSecret = "accessgate-dev-secret"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	backends := server.Backends{}
	users := identity.NewMemoryRepository()
	profiles := profile.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := infra.EnsureSchema(ctx, db); err != nil {
			logger.Error("apply schema", "error", err)
			os.Exit(1)
		}
		backends.DB = db
		users = identity.NewPostgresRepository(db)
		profiles = profile.NewPostgresRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, users and profiles are kept in memory")
	}

	var dir directory.Directory = directory.NewMemoryDirectory(cfg.PINMarkerTTL)
	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		backends.Cache = cache
		dir = directory.NewRedisDirectory(cache, cfg.PINMarkerTTL)
	} else {
		logger.Warn("REDIS_URL not set, PIN markers are kept in memory and idempotency is disabled")
	}

	secret := cfg.TokenSecret
	if secret == "" {
		logger.Warn("TOKEN_SECRET not set, using the development secret")
		secret = devTokenSecret
	}
	tokens, err := identity.NewTokens(identity.TokenConfig{
		Secret:    secret,
		Issuer:    cfg.AppName,
		AccessTTL: cfg.AccessTokenTTL,
		EmailTTL:  cfg.EmailTokenTTL,
	})
	if err != nil {
		logger.Error("build tokens", "error", err)
		os.Exit(1)
	}

	backends.Provider = identity.NewProvider(users, tokens, notification.NewLoggerNotifier(logger), identity.ProviderConfig{
		ConfirmBeforeSignIn: cfg.ConfirmBeforeSignIn,
		PasswordMinLength:   cfg.PasswordMinLength,
		PublicBaseURL:       cfg.PublicBaseURL,
	}, logger)
	backends.Scopes = scope.Deps{
		Profiles:  profiles,
		Directory: dir,
		Digester:  pin.NewBcryptDigester(),
	}

	srv, err := server.New(cfg, backends, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Address()), slog.String("env", cfg.AppEnv))
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
