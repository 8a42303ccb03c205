// Package auth resolves the principal behind an HTTP request.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// PrincipalHeader carries the caller identity in header mode
	PrincipalHeader = "X-Principal"
	// ContextKey is the gin context key the authenticated principal is stored under
	ContextKey = "auction.principal"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator verifies a request and returns the identity it was made on behalf of
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts the X-Principal header as set by an upstream proxy.
// Use it only behind something that strips client-supplied values.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	principal := strings.TrimSpace(r.Header.Get(PrincipalHeader))
	if principal == "" {
		return "", fmt.Errorf("auth: %w - missing %s header", ErrUnauthenticated, PrincipalHeader)
	}
	return principal, nil
}

// JWTAuthenticator verifies EdDSA-signed bearer tokens. The token subject is the principal.
type JWTAuthenticator struct {
	key      ed25519.PublicKey
	issuer   string
	audience string
	now      func() time.Time
}

// NewJWTAuthenticator creates a verifier for tokens signed by the holder of key.
// Empty issuer or audience disables that check.
func NewJWTAuthenticator(key ed25519.PublicKey, issuer, audience string) (*JWTAuthenticator, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return &JWTAuthenticator{
		key:      key,
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		now:      time.Now,
	}, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("auth: %w - missing bearer token", ErrUnauthenticated)
	}
	return a.Verify(strings.TrimSpace(token))
}

// Verify validates a raw token and returns its subject
func (a *JWTAuthenticator) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("auth: %w - %s", ErrUnauthenticated, describeJWTError(err))
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("auth: %w - token has no subject", ErrUnauthenticated)
	}
	return subject, nil
}

func describeJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return "invalid signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer mismatch"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "audience mismatch"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unsupported signing method"
	default:
		return "invalid token"
	}
}

// DecodePublicKey parses a base64 ed25519 public key, padded or not
func DecodePublicKey(value string) (ed25519.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("auth: empty public key")
	}
	raw, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		if raw, err = base64.StdEncoding.DecodeString(value); err != nil {
			return nil, fmt.Errorf("auth: decode public key: %w", err)
		}
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
