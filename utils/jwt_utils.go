package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the signed-in user as asserted by the identity provider.
type Identity struct {
	// UserID is the provider's subject, stored as users.clerk_id.
	UserID string
	Email  string
}

// ParseToken verifies an HMAC-signed bearer token and returns its identity.
func ParseToken(secret, tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		// older tokens carry the id under user_id
		sub, _ = claims["user_id"].(string)
	}
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	return Identity{UserID: sub, Email: strings.ToLower(email)}, nil
}

// SignToken issues a token for id. Used by tests and local tooling.
func SignToken(secret string, id Identity) (string, error) {
	claims := jwt.MapClaims{"sub": id.UserID}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
