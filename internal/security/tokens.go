// Package security decodes backend-issued JWT access tokens into typed claims.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when an access token cannot be decoded or
	// lacks a required claim.
	ErrMalformedToken = errors.New("malformed access token")
)

// AccessClaims holds the claims the gateway reads from a backend access token.
// The backend signs and verifies tokens; the gateway only needs the embedded
// subject and expiry, so the signature is not checked here.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// DecodeAccessClaims parses token without verifying its signature and returns
// typed claims. Returns ErrMalformedToken if the token does not parse or is
// missing the sub or exp claim. The expiry drives the session's refresh check,
// so it is always derived from the token itself, never set independently.
func DecodeAccessClaims(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	return claims, nil
}

// Expiry returns the token expiry as a time.Time in UTC.
func (c *AccessClaims) Expiry() time.Time {
	return c.ExpiresAt.Time.UTC()
}
