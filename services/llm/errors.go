package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for registry and adapter construction.
var (
	// ErrUnknownProvider indicates a lookup for a name never registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey indicates a provider was selected without a
	// credential in the environment or secret store.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrEmptyCompletion indicates the vendor returned no usable content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind string

const (
	// KindTimeout covers deadline expiry and transport-level stalls.
	KindTimeout ErrorKind = "timeout"

	// KindRateLimited covers vendor throttling responses.
	KindRateLimited ErrorKind = "rate_limited"

	// KindInvalidResponse covers malformed or empty vendor output and
	// unexpected server-side failures.
	KindInvalidResponse ErrorKind = "invalid_response"

	// KindAuthFailure covers rejected or missing credentials.
	KindAuthFailure ErrorKind = "auth_failure"
)

// ProviderError is the uniform failure type returned by every adapter.
// Callers branch on Kind, never on vendor-specific error types.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is worth retrying.
// Auth failures and malformed responses repeat identically on retry.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindRateLimited
}

// IsRetryable reports whether err is a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// newProviderError wraps err with a provider name and failure class.
func newProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// classifyStatus maps an HTTP status code to a failure class.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailure
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindInvalidResponse
	}
}

// classifyTransportErr maps a transport-level error to a failure class.
func classifyTransportErr(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInvalidResponse
}
