package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means the requested lifecycle transition is illegal
	// from the entity's current state.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrOutOfRange means the requested quantity is outside the selected
	// provider service's min/max bounds.
	ErrOutOfRange = errors.New("quantity out of range")
	// ErrConflict means a concurrent writer won a state check; the whole
	// operation is safe to retry.
	ErrConflict = errors.New("concurrent update conflict")
)

// ValidationError marks malformed or missing input, surfaced as a client error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failure talking to an external provider. Transient
// failures are retried with backoff; permanent ones are terminal.
type ProviderError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}
