package auth

import (
	"direct-chat/errors"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func ValidateRegister(req RegisterRequest) error {
	return Validate(req)
}

func ValidateLogin(req LoginRequest) error {
	return Validate(req)
}

// Validate runs the struct tags of req and folds every violation into one
// ErrValidation naming the offending fields.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	fields := lo.Map(fieldErrors, func(fe validator.FieldError, _ int) string {
		return fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag())
	})
	return fmt.Errorf("%w: invalid %s", errors.ErrValidation, strings.Join(fields, ", "))
}
