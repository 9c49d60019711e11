// Package auth provides session token issuance and validation plus the
// request middleware that binds every protected request to a workspace.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prn-tf/graphrag-portal/internal/domain"
)

// Config holds the immutable token service settings.
// Injected at construction rather than read from globals so secret
// rotation is an explicit restart-time operation.
type Config struct {
	// Secret is the symmetric HS256 signing key. Rotating it invalidates
	// every outstanding token at once.
	Secret []byte

	// TTL is the token lifetime.
	TTL time.Duration
}

// Claims are the session token claims.
// The token is stateless: possession of a validly signed, unexpired token
// is the sole authorization proof.
type Claims struct {
	// Workspace is the storage namespace bound to the authenticated user.
	Workspace string `json:"workspace"`

	// Email mirrors the account's contact address for client convenience.
	Email string `json:"email,omitempty"`

	jwt.RegisteredClaims
}

// Username returns the authenticated username (the token subject).
func (c *Claims) Username() string {
	return c.Subject
}

// TokenService issues and validates signed session tokens.
type TokenService struct {
	cfg Config
}

// NewTokenService creates a TokenService from an immutable configuration.
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// Issue creates a signed session token for an account.
func (s *TokenService) Issue(account *domain.Account) (string, error) {
	now := time.Now().UTC()

	claims := &Claims{
		Workspace: account.Workspace,
		Email:     account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token.
// Failures are classified as domain.ErrTokenExpired, domain.ErrTokenSignature,
// or domain.ErrTokenMalformed; all three surface as a generic 401 at the
// HTTP boundary.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrTokenSignature
		default:
			return nil, domain.ErrTokenMalformed
		}
	}
	if !parsed.Valid || claims.Subject == "" || claims.Workspace == "" {
		return nil, domain.ErrTokenMalformed
	}

	return claims, nil
}
