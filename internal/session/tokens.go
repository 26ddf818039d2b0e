package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from a JWT without the signing key.
type TokenInfo struct {
	Type      string
	UserID    int64
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	TokenType string `json:"token_type,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken decodes a JWT's claims without verifying the signature. The
// result is informational only.
func InspectToken(token string) (*TokenInfo, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}

	info := &TokenInfo{
		Type:    claims.TokenType,
		UserID:  claims.UserID,
		Subject: claims.Subject,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token is past its expiry at now. Tokens
// without an expiry never expire.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Remaining returns the time left before expiry, zero when expired or
// unknown.
func (t *TokenInfo) Remaining(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() || t.Expired(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}
