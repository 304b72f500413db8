package services

import (
	"time"

	"duochat/auth"
	"duochat/errors"
)

type IAuthService interface {
	Login(secretPhrase string) (Token, error)
}

type AuthService struct {
	phraseHash        string
	authTokenDuration time.Duration
}

type Token string

// NewAuthService builds the gate around the stored Argon2id hash of the
// shared secret phrase. The plain phrase never reaches this layer's state.
func NewAuthService(phraseHash string, authTokenDuration time.Duration) IAuthService {
	return &AuthService{phraseHash: phraseHash, authTokenDuration: authTokenDuration}
}

// Login compares the supplied phrase against the stored hash and, on match,
// issues a signed session token. Every failure collapses into the same
// generic error so no partial information leaks about which check failed.
func (s *AuthService) Login(secretPhrase string) (Token, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{SecretPhrase: secretPhrase}); err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.CompareSecretPhrase(secretPhrase, s.phraseHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}
