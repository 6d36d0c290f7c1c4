package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest password registration accepts.
const MinPasswordLength = 6

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, not characters.
const MaxPasswordBytes = 72

// CheckEmailInput is the body of POST /api/auth/check-email and send-otp.
type CheckEmailInput struct {
	Email string `json:"email" validate:"required"`
}

// LoginInput is the body of POST /api/auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the body of POST /api/auth/register.
type RegisterInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Mobile   string `json:"mobile,omitempty" validate:"omitempty,max=32"`
}

// VerifyOTPInput is the body of POST /api/auth/verify-otp.
type VerifyOTPInput struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct validation and turns the first failure into a
// ValidationError with a message fit for the client.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return validationErrorf(field, "%s is required", field)
	case "min":
		if field == "password" {
			return validationErrorf(field, "password must be at least %d characters", MinPasswordLength)
		}
		return validationErrorf(field, "%s must be at least %s characters", field, fe.Param())
	case "max":
		return validationErrorf(field, "%s must be at most %s characters", field, fe.Param())
	default:
		return validationErrorf(field, "%s is invalid", field)
	}
}
