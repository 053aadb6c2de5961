package service

import (
	"errors"
	"fmt"

	"dukaan/backend/internal/store"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")

	ErrNotFound           = store.ErrNotFound
	ErrConflict           = store.ErrConflict
	ErrInsufficientStock  = store.ErrInsufficientStock
	ErrTransactionFailure = store.ErrTransactionFailure
)

// InsufficientStockError names the product a sale or purchase edit could
// not take stock from.
type InsufficientStockError = store.InsufficientStockError

type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return &ValidationError{Err: ErrValidation, Details: fmt.Sprintf(format, args...)}
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}
