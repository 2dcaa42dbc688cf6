package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("authorization token invalid")

// AuthClaims are carried by the auth_token cookie
type AuthClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// MakeAuthToken signs a HS256 token for userID valid for ttl
func MakeAuthToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token, %w", err)
	}

	return signed, nil
}

// ParseAuthToken validates the signature and expiry of s and returns the
// user it was issued for
func ParseAuthToken(secret []byte, s string) (string, error) {
	var claims AuthClaims

	token, err := jwt.ParseWithClaims(s, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w, %w", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
