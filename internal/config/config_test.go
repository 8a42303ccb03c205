package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"testing"

	"auction-ledger/internal/auth"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "AUCTION_LOG_LEVEL", "AUCTION_STORE", "AUCTION_SQLITE_PATH", "AUCTION_POSTGRES_DSN",
		"AUCTION_ALLOW_SELLER_BIDS", "AUCTION_AUTH_MODE", "AUCTION_JWT_ISSUER", "AUCTION_JWT_AUDIENCE", "AUCTION_JWT_PUBLIC_KEY",
	} {
		// register restore, then unset so defaults apply
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, AuthModeHeader, cfg.AuthMode)
	require.True(t, cfg.TrustsClientPrincipal())
	require.False(t, cfg.AllowSellerBids)

	a, err := cfg.Authenticator()
	require.NoError(t, err)
	require.IsType(t, auth.HeaderAuthenticator{}, a)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AUCTION_LOG_LEVEL", "debug")
	t.Setenv("AUCTION_STORE", " SQLite ")
	t.Setenv("AUCTION_SQLITE_PATH", "/tmp/auctions.db")
	t.Setenv("AUCTION_ALLOW_SELLER_BIDS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, StoreSQLite, cfg.Store)
	require.Equal(t, "/tmp/auctions.db", cfg.SQLitePath)
	require.True(t, cfg.AllowSellerBids)
}

func TestLoad_JWTMode(t *testing.T) {
	clearEnv(t)
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	t.Setenv("AUCTION_AUTH_MODE", "jwt")
	t.Setenv("AUCTION_JWT_ISSUER", "issuer")
	t.Setenv("AUCTION_JWT_AUDIENCE", "audience")
	t.Setenv("AUCTION_JWT_PUBLIC_KEY", base64.RawStdEncoding.EncodeToString(pub))

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.TrustsClientPrincipal())

	a, err := cfg.Authenticator()
	require.NoError(t, err)
	require.IsType(t, &auth.JWTAuthenticator{}, a)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown_store", env: map[string]string{"AUCTION_STORE": "redis"}},
		{name: "sqlite_without_path", env: map[string]string{"AUCTION_STORE": "sqlite"}},
		{name: "postgres_without_dsn", env: map[string]string{"AUCTION_STORE": "postgres"}},
		{name: "unknown_auth_mode", env: map[string]string{"AUCTION_AUTH_MODE": "oauth"}},
		{name: "jwt_without_key", env: map[string]string{"AUCTION_AUTH_MODE": "jwt"}},
		{name: "jwt_bad_key", env: map[string]string{"AUCTION_AUTH_MODE": "jwt", "AUCTION_JWT_PUBLIC_KEY": "c2hvcnQ="}},
		{name: "bad_bool", env: map[string]string{"AUCTION_ALLOW_SELLER_BIDS": "maybe"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
