package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LoginRequest is the payload of POST /api/auth/login.
type LoginRequest struct {
	SecretPhrase string `json:"secretPhrase" validate:"required,min=1,max=256"`
}

func ValidateLogin(req LoginRequest) error {
	return validate.Struct(req)
}
