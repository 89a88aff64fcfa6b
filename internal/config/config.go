package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	minPINLength = 4
	maxPINLength = 12
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"AccessGate"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// ProviderTimeout bounds every identity provider and profile store round trip.
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s"`

	TokenSecret         string        `env:"TOKEN_SECRET"`
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	EmailTokenTTL       time.Duration `env:"EMAIL_TOKEN_TTL" envDefault:"24h"`
	ConfirmBeforeSignIn bool          `env:"CONFIRM_BEFORE_SIGN_IN" envDefault:"false"`
	PublicBaseURL       string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	PasswordMinLength   int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`

	// The standalone PIN screen and the combined profile form disagree on
	// PIN length. Both stay configurable until product settles on one.
	PINLengthStandalone int           `env:"PIN_LENGTH_STANDALONE" envDefault:"6"`
	PINLengthProfile    int           `env:"PIN_LENGTH_PROFILE" envDefault:"4"`
	PINMaxAttempts      int           `env:"PIN_MAX_ATTEMPTS" envDefault:"3"`
	PINMarkerTTL        time.Duration `env:"PIN_MARKER_TTL" envDefault:"12h"`

	VerifyPollInterval time.Duration `env:"VERIFY_POLL_INTERVAL" envDefault:"3s"`
	ScopeIdleTTL       time.Duration `env:"SCOPE_IDLE_TTL" envDefault:"30m"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"5"`
}

// Load reads configuration values from the environment and validates them.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"SHUTDOWN_TIMEOUT":     c.ShutdownPeriod,
		"IDEMPOTENCY_TTL":      c.IdempotencyTTL,
		"PROVIDER_TIMEOUT":     c.ProviderTimeout,
		"ACCESS_TOKEN_TTL":     c.AccessTokenTTL,
		"EMAIL_TOKEN_TTL":      c.EmailTokenTTL,
		"PIN_MARKER_TTL":       c.PINMarkerTTL,
		"VERIFY_POLL_INTERVAL": c.VerifyPollInterval,
		"SCOPE_IDLE_TTL":       c.ScopeIdleTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	for name, n := range map[string]int{
		"PIN_LENGTH_STANDALONE": c.PINLengthStandalone,
		"PIN_LENGTH_PROFILE":    c.PINLengthProfile,
	} {
		if n < minPINLength || n > maxPINLength {
			return fmt.Errorf("%s must be between %d and %d", name, minPINLength, maxPINLength)
		}
	}
	if c.PINMaxAttempts <= 0 {
		return fmt.Errorf("PIN_MAX_ATTEMPTS must be positive")
	}
	if c.PasswordMinLength < 6 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be at least 6")
	}

	if !c.IsDev() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
		}
		if c.TokenSecret == "" {
			return fmt.Errorf("TOKEN_SECRET must be set when APP_ENV=%s", c.AppEnv)
		}
	}
	return nil
}

// IsDev reports whether the service runs in a local development mode where
// memory backends are acceptable.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
