package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")

	ErrExtraction        = errors.New("extraction failed")
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage failure")
	ErrSessionExpired    = errors.New("session expired")
	ErrInvalidFile       = errors.New("invalid file")
	ErrConfiguration     = errors.New("configuration error")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrCapacity          = errors.New("capacity exceeded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ExtractionError is returned once the recognition retries are exhausted
// or a non-retryable failure is hit.
type ExtractionError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction via %s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// ValidationError aggregates user-facing field messages.
type ValidationError struct {
	Field    Field
	Messages []string
}

func NewValidationError(field Field, messages ...string) *ValidationError {
	return &ValidationError{Field: field, Messages: messages}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError reports a failed store step. RowAppended marks the
// degenerate outcome where the row exists but the file upload failed.
type StorageError struct {
	Op          string
	RowAppended bool
	Err         error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// InvalidFileError rejects an upload before any processing begins.
type InvalidFileError struct {
	Reason string
}

func (e *InvalidFileError) Error() string { return "invalid file: " + e.Reason }

func (e *InvalidFileError) Unwrap() error { return ErrInvalidFile }
