// Package scoring implements the client side of the external fraud-scoring
// service contract.
package scoring

import (
	"context"
	"errors"
	"time"
)

// Typed scoring failures. Timeout and ServiceUnavailable are transient and
// worth retrying; Malformed means the service rejected the request itself
// and retrying the same payload cannot succeed.
var (
	// ErrTimeout indicates the scoring call exceeded its deadline.
	ErrTimeout = errors.New("scoring request timed out")
	// ErrServiceUnavailable indicates the scoring service could not be
	// reached or answered with a server error.
	ErrServiceUnavailable = errors.New("scoring service unavailable")
	// ErrMalformed indicates the scoring service rejected the request.
	ErrMalformed = errors.New("scoring request rejected as malformed")
)

// IsTransient reports whether a scoring failure is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Config holds configuration for the HTTP scoring client.
type Config struct {
	// BaseURL is the scoring service root, e.g. "http://localhost:8000".
	BaseURL string
	// Timeout bounds each scoring call. Defaults to 30s.
	Timeout time.Duration
	// RequestsPerMinute throttles outbound calls when > 0. The scoring
	// service is typically a shared deployment; unbounded batch dispatch
	// can starve other callers.
	RequestsPerMinute int
}
