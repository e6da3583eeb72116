package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeClaims returns the claim set of a JWT without verifying its
// signature. The SDK only reads claims of tokens the server just issued.
func DecodeClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}
	return claims, nil
}

// ExpiryFromJWT returns the exp claim of token. ok is false for opaque
// tokens and tokens without exp.
func ExpiryFromJWT(token string) (exp *time.Time, ok bool) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return nil, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return nil, false
	}
	t := nd.Time
	return &t, true
}
