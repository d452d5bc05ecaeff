// Package config loads the application configuration from environment
// variables.
//
// CONFIG AS AN IMMUTABLE STRUCT:
// All configuration is read ONCE at startup into a single Config value and
// never mutated afterwards. Handlers and services receive the parts they need
// through constructor injection — nothing reads os.Getenv at request time.
// This avoids the classic serverless failure mode where a lazily-initialised
// global discovers a missing variable on the first unlucky request.
//
// WHY caarlos0/env?
// The struct tags declare the variable name, default, and separator right
// next to the field. env.Parse does the type conversion (ints, durations,
// slices) so we don't hand-roll strconv calls for every knob.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the server needs, grouped by subsystem.
type Config struct {
	// Server
	Port int `env:"PORT" envDefault:"8080"`

	// LinkedIn OAuth (auth subsystem)
	LinkedInClientID     string `env:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret string `env:"LINKEDIN_CLIENT_SECRET"`
	LinkedInRedirectURI  string `env:"LINKEDIN_REDIRECT_URI"`

	// Session signing (auth subsystem)
	// JWT_SECRET must be a long random string: JWT_SECRET=$(openssl rand -hex 32)
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"` // 7 days

	// Access control. Empty list = any authenticated LinkedIn identity may
	// log in. Non-empty = strict allow-list, checked before a user record is
	// ever created.
	AllowedEmails []string `env:"ALLOWED_EMAILS" envSeparator:","`

	// Automation webhooks (webhook subsystem)
	GenerateWebhookURL string        `env:"N8N_GENERATE_WEBHOOK"`
	PublishWebhookURL  string        `env:"N8N_PUBLISH_WEBHOOK"`
	WebhookTimeout     time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`

	// Datastore. DATABASE_URL set → hosted Postgres. Unset → embedded SQLite
	// file at DBPath (local development).
	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH" envDefault:"data/postforge.db"`

	// Rate limiting on the auth endpoints, requests per minute per client IP.
	AuthRatePerMinute int `env:"RATE_LIMIT_AUTH" envDefault:"30"`
}

// Load reads and validates the configuration from the environment.
//
// VALIDATION REPORTS SUBSYSTEMS, NOT VARIABLES:
// A missing required setting is a fatal startup error, but the error names
// the unconfigured subsystem ("auth", "webhook") rather than the specific
// variable. The operator can read the struct tags above; a client seeing a
// 500 should learn nothing about our environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	cfg.AllowedEmails = normalizeEmails(cfg.AllowedEmails)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that each required subsystem is fully configured.
func (c *Config) validate() error {
	var missing []string

	if c.LinkedInClientID == "" || c.LinkedInClientSecret == "" || c.LinkedInRedirectURI == "" || c.JWTSecret == "" {
		missing = append(missing, "auth")
	}
	if c.GenerateWebhookURL == "" || c.PublishWebhookURL == "" {
		missing = append(missing, "webhook")
	}
	if c.SessionTTL <= 0 {
		missing = append(missing, "session")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings for subsystems: %s",
			strings.Join(missing, ", "))
	}

	if c.WebhookTimeout <= 0 {
		return errors.New("config: webhook timeout must be positive")
	}

	return nil
}

// CookieSecure reports whether auth cookies should carry the Secure flag.
//
// SECURITY-RELEVANT BRANCH, NOT COSMETIC:
// Secure cookies are never sent over plain HTTP, which would break the OAuth
// round-trip entirely on a local dev server. So the flag is omitted ONLY when
// the OAuth redirect target is a non-TLS local host; every other deployment
// gets Secure cookies.
func (c *Config) CookieSecure() bool {
	u, err := url.Parse(c.LinkedInRedirectURI)
	if err != nil {
		return true // unparseable → assume production, keep the flag
	}
	if u.Scheme == "https" {
		return true
	}
	host := u.Hostname()
	return host != "localhost" && host != "127.0.0.1" && host != "::1"
}

// AllowAll reports whether the allow-list is disabled (no configured entries).
func (c *Config) AllowAll() bool {
	return len(c.AllowedEmails) == 0
}

// EmailAllowed reports whether the given email may log in.
// Comparison is case-insensitive — email local parts are technically
// case-sensitive, but no identity provider treats them that way.
func (c *Config) EmailAllowed(email string) bool {
	if c.AllowAll() {
		return true
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range c.AllowedEmails {
		if allowed == email {
			return true
		}
	}
	return false
}

// normalizeEmails trims, lowercases, and drops empty entries from the
// comma-split allow-list ("a@x.com, ,B@x.com" → ["a@x.com", "b@x.com"]).
func normalizeEmails(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
