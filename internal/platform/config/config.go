// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. In development a local
'.env' file is loaded first through 'joho/godotenv'; variables already present in
the environment always win.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MinSecretBytes is the minimum decoded length of an HS256 signing secret.
const MinSecretBytes = 32

// Session store backends.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

// # Configuration Schema

// Config holds all runtime configuration for the Fitclub API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL). Not required when serving in-memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// Pool sizing. Zero keeps the postgres package defaults.
	DatabaseMaxConns         int32         `env:"DATABASE_MAX_CONNS"         envDefault:"20"`
	DatabaseMinConns         int32         `env:"DATABASE_MIN_CONNS"         envDefault:"2"`
	DatabaseStatementTimeout time.Duration `env:"DATABASE_STATEMENT_TIMEOUT" envDefault:"30s"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis). Optional.
	RedisURL      string `env:"REDIS_URL"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// SessionStore selects the refresh-session backend ("postgres" or "redis").
	SessionStore string `env:"SESSION_STORE" envDefault:"postgres"`

	// Token signing. JWTSecret and the values of JWTPreviousKeys are base64.
	JWTSecret       string            `env:"JWT_SECRET,required"`
	JWTKeyID        string            `env:"JWT_KEY_ID"        envDefault:"primary"`
	JWTPreviousKeys map[string]string `env:"JWT_PREVIOUS_KEYS"`
	JWTIssuer       string            `env:"JWT_ISSUER"        envDefault:"fitclub.app"`
	AccessTokenTTL  time.Duration     `env:"ACCESS_TOKEN_TTL"  envDefault:"30m"`
	RefreshTokenTTL time.Duration     `env:"REFRESH_TOKEN_TTL" envDefault:"336h"`

	// AdminEnrollmentSecret gates administrator self-registration.
	AdminEnrollmentSecret string `env:"ADMIN_ENROLLMENT_SECRET,required"`

	// Message broker (RabbitMQ). Optional.
	AMQPURL       string `env:"AMQP_URL"`
	AMQPRoleQueue string `env:"AMQP_ROLE_QUEUE" envDefault:"users.role_changed"`

	// Social login (OpenID Connect). Disabled unless the issuer is set.
	OIDCIssuerURL    string `env:"OIDC_ISSUER_URL"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`

	// Cross-Origin Resource Sharing
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load reads an optional .env file, then parses environment variables into a [Config].
func Load() (*Config, error) {

	// A missing .env file is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	return Parse()
}

// Parse maps the current environment onto a [Config] and validates it.
func Parse() (*Config, error) {

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if _, err := c.SigningSecret(); err != nil {
		return err
	}

	if _, err := c.VerificationSecrets(); err != nil {
		return err
	}

	switch c.SessionStore {
	case SessionStorePostgres:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: SESSION_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("config: REFRESH_TOKEN_TTL must exceed a positive ACCESS_TOKEN_TTL")
	}

	if c.DatabaseMinConns > c.DatabaseMaxConns {
		return errors.New("config: DATABASE_MIN_CONNS must not exceed DATABASE_MAX_CONNS")
	}

	if strings.TrimSpace(c.AdminEnrollmentSecret) == "" {
		return errors.New("config: ADMIN_ENROLLMENT_SECRET must not be blank")
	}

	return nil
}

// SigningSecret decodes the current HS256 secret.
func (c *Config) SigningSecret() ([]byte, error) {
	return decodeSecret("JWT_SECRET", c.JWTSecret)
}

// VerificationSecrets decodes the retired keys that are still trusted, keyed by kid.
func (c *Config) VerificationSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte, len(c.JWTPreviousKeys))
	for kid, encoded := range c.JWTPreviousKeys {
		if kid == c.JWTKeyID {
			return nil, fmt.Errorf("config: JWT_PREVIOUS_KEYS reuses current key id %q", kid)
		}
		secret, err := decodeSecret("JWT_PREVIOUS_KEYS["+kid+"]", encoded)
		if err != nil {
			return nil, err
		}
		secrets[kid] = secret
	}
	return secrets, nil
}

// SocialLoginEnabled reports whether an OIDC provider is configured.
func (c *Config) SocialLoginEnabled() bool {
	return c.OIDCIssuerURL != "" && c.OIDCClientID != ""
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// decodeSecret base64-decodes a secret and enforces the minimum length.
func decodeSecret(name, encoded string) ([]byte, error) {
	secret, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("config: %s is not valid base64: %w", name, err)
	}
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("config: %s must decode to at least %d bytes", name, MinSecretBytes)
	}
	return secret, nil
}
