package server

import (
	"github.com/congo-pay/accessgate/internal/config"
	"github.com/congo-pay/accessgate/internal/onboarding"
	"github.com/congo-pay/accessgate/internal/pin"
)

// PINPolicy extracts the PIN lengths from cfg.
func PINPolicy(cfg config.Config) pin.Policy {
	return pin.Policy{StandaloneLength: cfg.PINLengthStandalone, ProfileLength: cfg.PINLengthProfile}
}

// OnboardingConfig extracts the controller settings from cfg.
func OnboardingConfig(cfg config.Config) onboarding.Config {
	return onboarding.Config{MaxPinAttempts: cfg.PINMaxAttempts, PollInterval: cfg.VerifyPollInterval}
}
