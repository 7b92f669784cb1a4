package utils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JWT Secret Key
var JwtKey = []byte("your_secret_key") // This will be loaded from .env

// ResetClaims represents the claims carried by a password-reset token.
type ResetClaims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// GenerateResetToken signs a password-reset token for the given email. The
// token expires after ttl; the expiration is also returned so it can be
// stored on the user document alongside the token.
func GenerateResetToken(email string, ttl time.Duration) (string, time.Time, error) {
	expirationTime := time.Now().Add(ttl)
	claims := &ResetClaims{
		Email: email,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(JwtKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expirationTime, nil
}

// ParseResetToken validates a password-reset token's signature and expiry
// and returns its claims.
func ParseResetToken(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse reset token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid reset token")
	}
	return claims, nil
}
