package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the claims carried by session tokens. Regular user tokens
// only carry the principal id; admin tokens also carry email and role.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
}

// PrincipalID returns the principal id embedded in the token
func (c *JWTClaims) PrincipalID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Role returns the role claim, empty for regular user tokens
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// IsAdmin reports whether the token was minted for the admin principal
func (c *JWTClaims) IsAdmin() bool {
	return c.PrincipalID() == AdminPrincipalID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *JWTClaims) Issued() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// ClaimsOption decorates claims before signing
type ClaimsOption func(*JWTClaims)

// WithRoleClaim embeds a role in the token
func WithRoleClaim(role Role) ClaimsOption {
	return func(c *JWTClaims) {
		c.UserRole = string(role)
	}
}

// WithEmailClaim embeds an email in the token
func WithEmailClaim(email string) ClaimsOption {
	return func(c *JWTClaims) {
		c.Email = email
	}
}
