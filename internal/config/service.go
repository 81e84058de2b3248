package config

import (
	"fmt"
	"strings"
)

// RuntimeMode is the explicit deployment mode. It is injected configuration,
// never inferred from secret contents: production gates signature
// verification and the placeholder-secret refusal.
type RuntimeMode string

const (
	ModeProduction RuntimeMode = "production"
	ModeTest       RuntimeMode = "test"
)

type ServiceConfig struct {
	Name                string       `yaml:"name" validate:"required"`
	Mode                RuntimeMode  `yaml:"mode" validate:"required,oneof=production test"`
	ClientURL           string       `yaml:"client_url"`
	StripeSecretKey     string       `yaml:"stripe_secret_key" validate:"required"`
	StripeWebhookSecret string       `yaml:"stripe_webhook_secret" validate:"required"`
	JWTSecret           string       `yaml:"jwt_secret" validate:"required"`
	Plans               []PlanConfig `yaml:"plans" validate:"dive"`
}

// PlanConfig overrides or extends the built-in price-id → plan table.
type PlanConfig struct {
	PriceID         string `yaml:"price_id" validate:"required"`
	Key             string `yaml:"key" validate:"required"`
	Name            string `yaml:"name" validate:"required"`
	CreditsPerMonth int    `yaml:"credits_per_month" validate:"gt=0"`
	MaxRollover     int    `yaml:"max_rollover" validate:"gt=0"`
}

// placeholderSecretMarkers are substrings that identify secrets copied from
// docs or scaffolding rather than issued by Stripe.
var placeholderSecretMarkers = []string{
	"placeholder",
	"changeme",
	"your_webhook_secret",
	"your-webhook-secret",
	"example",
}

// IsPlaceholderWebhookSecret reports whether the secret is blank or a known
// scaffold value that must never verify real traffic.
func IsPlaceholderWebhookSecret(secret string) bool {
	s := strings.ToLower(strings.TrimSpace(secret))
	if s == "" {
		return true
	}
	for _, marker := range placeholderSecretMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// ValidateSecrets refuses to run production mode with a placeholder webhook
// secret. Accepting unverified events in production silently corrupts the
// ledger, so startup fails instead.
func (c *ServiceConfig) ValidateSecrets() error {
	if c.Mode == ModeProduction && IsPlaceholderWebhookSecret(c.StripeWebhookSecret) {
		return fmt.Errorf("stripe_webhook_secret is a placeholder; refusing to run in production mode")
	}
	return nil
}
