package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput marks client-correctable requests. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	ErrTransientBackend = errors.New("transient backend error")
	ErrFatalBackend     = errors.New("fatal backend error")
	ErrContentPolicy    = fmt.Errorf("content policy rejection: %w", ErrFatalBackend)
	ErrSchemaValidation = fmt.Errorf("schema validation failed: %w", ErrFatalBackend)

	// ErrResourceExhausted means every worker is busy; the request is queued, not rejected.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrOverloaded is returned when a lane's queue-depth ceiling is exceeded.
	ErrOverloaded = errors.New("overloaded")

	// ErrCancelled is the terminal outcome of a requester cancel. It is not a failure.
	ErrCancelled = errors.New("cancelled by requester")

	ErrInternal = errors.New("internal error")
	ErrConflict = errors.New("conflict")
)

// Kind values recorded on jobs and returned to clients.
const (
	KindInvalidInput     = "invalid_input"
	KindTransient        = "transient"
	KindFatal            = "fatal"
	KindContentPolicy    = "content_policy"
	KindSchemaValidation = "schema_validation"
	KindOverloaded       = "overloaded"
	KindCancelled        = "cancelled"
	KindNotFound         = "not_found"
	KindInternal         = "internal"
)

// Invalid wraps a message as an ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Transient wraps err so that the retry policy treats it as recoverable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransientBackend, err)
}

// Fatal wraps err so that the job fails without retry.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatalBackend, err)
}

// IsRetryable reports whether err should feed the retry policy.
// Attempt deadlines count as transient; requester cancellation does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatalBackend) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrCancelled) {
		return false
	}
	return errors.Is(err, ErrTransientBackend) || errors.Is(err, context.DeadlineExceeded)
}

// KindOf maps err to its recorded kind. Unclassified errors are internal.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrContentPolicy):
		return KindContentPolicy
	case errors.Is(err, ErrSchemaValidation):
		return KindSchemaValidation
	case errors.Is(err, ErrFatalBackend):
		return KindFatal
	case errors.Is(err, ErrTransientBackend), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.Is(err, ErrOverloaded), errors.Is(err, ErrResourceExhausted):
		return KindOverloaded
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
