package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mwhitfield/vigil/internal/models"
)

// TokenValidator checks access tokens minted by the external identity
// provider against the shared HS256 secret. This service never issues
// or refreshes tokens of its own.
type TokenValidator struct {
	secret string
}

// NewTokenValidator creates a new TokenValidator
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: secret}
}

// ValidateToken verifies a token and returns its claims
func (v *TokenValidator) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.AccountID == "" {
		return nil, fmt.Errorf("invalid token: missing account id")
	}

	return claims, nil
}
