package models

import "github.com/golang-jwt/jwt/v5"

// Roles the identity provider may assign to an account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// TokenClaims is the claim set of an access token issued by the
// external identity provider. This service validates and reads these
// tokens; it never mints or refreshes them.
type TokenClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims grant the admin role.
func (c *TokenClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
