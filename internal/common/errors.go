// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors raised by the ledger core.
var (
	// Not-found errors.
	ErrNotFound = errors.New("not found")

	// Validation errors: malformed input, rejected before any store mutation.
	ErrValidation    = errors.New("validation failed")
	ErrInvalidMonth  = errors.New("month must be in YYYY-MM format")
	ErrInvalidAmount = errors.New("invalid amount")

	// Referential errors: a cross-reference that does not hold.
	ErrPeriodMismatch   = errors.New("transaction date outside the category's budget period")
	ErrCategoryNotOwned = errors.New("category belongs to a different user")

	// Conflict errors.
	ErrDuplicateAllocation = errors.New("allocation already exists for this category in this period")
	ErrPeriodOverlap       = errors.New("budget period overlaps an existing period")
	ErrCategoryInUse       = errors.New("category is referenced by transactions")
	ErrStaleWrite          = errors.New("record version changed since read")

	// Classifier errors.
	ErrNoSuggestion         = errors.New("classifier returned no suggestion")
	ErrClassificationFailed = errors.New("classification failed")
	ErrRateLimit            = errors.New("rate limit exceeded")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind classifies an error for the caller's retry/surface policy.
type ErrorKind string

// Error kinds.
const (
	KindValidation  ErrorKind = "validation"
	KindReferential ErrorKind = "referential"
	KindConflict    ErrorKind = "conflict"
	KindNotFound    ErrorKind = "not_found"
	KindInternal    ErrorKind = "internal"
)

// Kind maps an error to its taxonomy kind. Errors outside the taxonomy are
// internal.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidMonth),
		errors.Is(err, ErrInvalidAmount):
		return KindValidation
	case errors.Is(err, ErrPeriodMismatch),
		errors.Is(err, ErrCategoryNotOwned):
		return KindReferential
	case errors.Is(err, ErrDuplicateAllocation),
		errors.Is(err, ErrPeriodOverlap),
		errors.Is(err, ErrCategoryInUse),
		errors.Is(err, ErrStaleWrite):
		return KindConflict
	default:
		return KindInternal
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. StaleWrite is
// the one ledger error a caller may retry after re-reading.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStaleWrite) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
