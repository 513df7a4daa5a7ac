package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classify every failure the session core can surface.
// Handlers match with errors.Is and map each class to an HTTP status.
var (
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrResolution          = errors.New("transaction id resolution failed")
	ErrNotFound            = errors.New("not found")
)

func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func ConflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func InsufficientFundsError(have, need float64) error {
	return fmt.Errorf("%w: have %.2f, need %.2f", ErrInsufficientFunds, have, need)
}

func UpstreamError(cause string) error {
	return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, cause)
}

func ResolutionError(deviceID string) error {
	return fmt.Errorf("%w: device %s", ErrResolution, deviceID)
}

func NotFoundError(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}
