// Package auth is the boundary to the external auth collaborator: it
// verifies a bearer token the collaborator already issued and extracts
// the user id it identifies. Issuance (login, refresh, OAuth, password
// reset) belongs to that collaborator, not this core, and is not
// implemented here.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type VerifierClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the external auth
// collaborator against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyBearerToken validates tokenString and returns the user id it
// identifies.
func (v *Verifier) VerifyBearerToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &VerifierClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*VerifierClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
