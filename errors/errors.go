package errors

import "fmt"

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrTokenMissing       = fmt.Errorf("token missing")
	ErrTokenInvalid       = fmt.Errorf("token invalid or expired")
	ErrIdentityNotAllowed = fmt.Errorf("identity not allowed")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
