package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtKey is the secret used to sign tokens.
// In a production environment, this should be loaded from an environment variable or a secret manager.
var jwtKey = []byte("duochat_signing_key_change_me_2026")

// SetSigningKey replaces the token signing key. Called once at startup,
// before any token is issued or verified.
func SetSigningKey(key []byte) {
	if len(key) > 0 {
		jwtKey = key
	}
}

// SessionClaims defines the structure of the data stored inside the JWT.
// The subject is a fixed claim: the token proves knowledge of the shared
// secret phrase, not which identity will be bound at join time.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// GenerateToken creates a signed session JWT valid for the given duration.
func GenerateToken(tokenDuration time.Duration) (string, error) {
	now := time.Now()

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "participant",
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "duochat",
		},
	}

	// Create the token using the HS256 algorithm (HMAC with SHA256).
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// Sign the token with the server's secret key.
	return token.SignedString(jwtKey)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
