package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access tokens minted by the hosted identity provider.
// The subject carries the user ID; older tokens put it in uid instead.
type Claims struct {
	UserID string `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ResolvedUserID prefers the standard subject claim.
func (c *Claims) ResolvedUserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// SessionResponse describes the caller's token.
type SessionResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}
