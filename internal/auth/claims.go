package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the session token shape minted by the identity provider.
// Subject and UserID carry the same value; UserID is preferred when present.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (c Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
