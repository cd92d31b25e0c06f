package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError marks a failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// FatalError marks a failure that must not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error { return &TransientError{err: err} }

// NewFatalError wraps err as non-retryable.
func NewFatalError(err error) error { return &FatalError{err: err} }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// statusError classifies an HTTP failure from a chat provider. Rate limits
// and server errors are transient; everything else is fatal.
func statusError(provider string, status int, message string) error {
	err := fmt.Errorf("%s status %d: %s", provider, status, message)
	if status == http.StatusTooManyRequests || status >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
