package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind sentinels. A CapabilityError matches exactly one of them via errors.Is.
var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrQuotaExceeded         = errors.New("capability quota exceeded")
	ErrGenerationTimeout     = errors.New("generation timed out")
	ErrGenerationEmpty       = errors.New("generation returned no image")
	ErrAnalysisFailed        = errors.New("photo analysis failed")
	ErrValidationUnavailable = errors.New("structural validation unavailable")
)

// CapabilityError records which external capability failed and how.
type CapabilityError struct {
	Capability string
	Kind       error
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Capability, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Capability, e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel.
func (e *CapabilityError) Is(target error) bool {
	return target == e.Kind
}

func newCapabilityError(capability string, kind, err error) error {
	return &CapabilityError{Capability: capability, Kind: kind, Err: err}
}

// Unavailable reports missing configuration or credentials.
func Unavailable(capability string, err error) error {
	return newCapabilityError(capability, ErrCapabilityUnavailable, err)
}

// Empty reports a successful call that produced nothing usable.
func Empty(capability string, err error) error {
	return newCapabilityError(capability, ErrGenerationEmpty, err)
}

// IsTerminal reports errors that must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrCapabilityUnavailable) || errors.Is(err, ErrQuotaExceeded)
}

// IsRetryable reports errors that count against an attempt budget but may
// succeed on another try. Caller cancellation is neither.
func IsRetryable(err error) bool {
	if err == nil || IsTerminal(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Classify maps a provider error onto the taxonomy. Already classified errors
// pass through unchanged.
func Classify(capability string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newCapabilityError(capability, ErrGenerationTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return newCapabilityError(capability, ErrQuotaExceeded, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return newCapabilityError(capability, ErrCapabilityUnavailable, err)
		case http.StatusGatewayTimeout, http.StatusRequestTimeout:
			return newCapabilityError(capability, ErrGenerationTimeout, err)
		}
	}

	// Vertex prediction calls surface gRPC statuses instead.
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return newCapabilityError(capability, ErrQuotaExceeded, err)
		case codes.Unauthenticated, codes.PermissionDenied:
			return newCapabilityError(capability, ErrCapabilityUnavailable, err)
		case codes.DeadlineExceeded:
			return newCapabilityError(capability, ErrGenerationTimeout, err)
		}
	}
	return err
}
