package config

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"auction-ledger/internal/auth"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

// Config is the process configuration, read from the environment
type Config struct {
	Port            string `env:"PORT"                      envDefault:"8080"`
	LogLevel        string `env:"AUCTION_LOG_LEVEL"         envDefault:"info"`
	Store           string `env:"AUCTION_STORE"             envDefault:"memory"`
	SQLitePath      string `env:"AUCTION_SQLITE_PATH"`
	PostgresDSN     string `env:"AUCTION_POSTGRES_DSN"`
	AllowSellerBids bool   `env:"AUCTION_ALLOW_SELLER_BIDS" envDefault:"false"`
	AuthMode        string `env:"AUCTION_AUTH_MODE"         envDefault:"header"`
	JWTIssuer       string `env:"AUCTION_JWT_ISSUER"`
	JWTAudience     string `env:"AUCTION_JWT_AUDIENCE"`
	JWTPublicKey    string `env:"AUCTION_JWT_PUBLIC_KEY"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected store and auth mode have what they need
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("AUCTION_SQLITE_PATH is required when AUCTION_STORE=%s", StoreSQLite)
		}
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("AUCTION_POSTGRES_DSN is required when AUCTION_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown AUCTION_STORE %q", c.Store)
	}

	switch c.AuthMode {
	case AuthModeHeader:
	case AuthModeJWT:
		if _, err := c.PublicKey(); err != nil {
			return fmt.Errorf("AUCTION_JWT_PUBLIC_KEY: %w", err)
		}
	default:
		return fmt.Errorf("unknown AUCTION_AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

// PublicKey decodes the configured JWT verification key
func (c Config) PublicKey() (ed25519.PublicKey, error) {
	return auth.DecodePublicKey(c.JWTPublicKey)
}

// TrustsClientPrincipal reports whether callers name themselves through the X-Principal header
// with nothing verifying the claim. Only safe behind a trusted gateway.
func (c Config) TrustsClientPrincipal() bool {
	return c.AuthMode == AuthModeHeader
}

// Authenticator builds the request authenticator for the configured auth mode
func (c Config) Authenticator() (auth.Authenticator, error) {
	if c.AuthMode != AuthModeJWT {
		return auth.HeaderAuthenticator{}, nil
	}
	key, err := c.PublicKey()
	if err != nil {
		return nil, err
	}
	return auth.NewJWTAuthenticator(key, c.JWTIssuer, c.JWTAudience)
}
