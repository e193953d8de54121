package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = fmt.Errorf("validation failed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrConflict           = fmt.Errorf("conflict")
	ErrInfrastructure     = fmt.Errorf("storage unavailable")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrSendQueueFull      = fmt.Errorf("send queue full")
)

// Infra wraps a storage driver error so callers can match ErrInfrastructure
// while the driver error stays reachable through errors.Unwrap.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

// MapToHTTPStatus translates the error taxonomy into a response status.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a client.
// Only client mistakes are echoed; anything else collapses to fallback.
func PublicMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserAlreadyExists):
		return err.Error()
	default:
		return fallback
	}
}
