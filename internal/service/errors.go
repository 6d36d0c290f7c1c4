package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the auth and content services. Handlers map
// them onto HTTP status codes; anything else is an internal failure.
var (
	// ErrAccessDenied means the email is not on the whitelist. Every auth
	// operation reports it identically.
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrNoPassword         = errors.New("no password set, please register first")
	ErrPasswordAlreadySet = errors.New("password already set, please login instead")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDelivery           = errors.New("failed to send OTP")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
