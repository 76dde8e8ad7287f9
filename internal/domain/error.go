package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrRateLimited        = errors.New("too many requests")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payment pipeline
	ErrMissingExternalID = errors.New("missing external correlation id")
	ErrPaymentFailed     = errors.New("payment failed, try again")
	ErrMaterialInactive  = errors.New("material is not available")
	ErrAmountMismatch    = errors.New("amount does not match catalog price")

	// Access grants
	ErrInvalidCode      = errors.New("invalid or already used code")
	ErrNoCodeAvailable  = errors.New("no access code available")
	ErrNotPendingReview = errors.New("request is not awaiting review")
)

// ValidationError names the field class that failed validation without
// echoing the raw input back.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid %s", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Invalid builds a ValidationError for the given field class.
func Invalid(field string) error { return &ValidationError{Field: field} }
