package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded indicates rate or quota exhaustion (HTTP 429,
	// RESOURCE_EXHAUSTED). Retryable, then falls back.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUnauthenticated indicates a missing or rejected credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTransient indicates a network failure or a 5xx response.
	ErrTransient = errors.New("transient provider failure")

	// ErrMalformedResponse indicates the provider violated its output contract.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrUnavailable indicates no provider is configured, or the configured
	// one lacks the requested capability.
	ErrUnavailable = errors.New("provider unavailable")
)

// IsRetryable reports whether err belongs to a class worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrTransient)
}

// Malformed wraps a contract violation description in ErrMalformedResponse.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// ClassifyStatus maps an HTTP status code to an error class. It returns nil
// for codes that carry no retry or fallback meaning.
func ClassifyStatus(code int) error {
	switch {
	case code == 429:
		return ErrQuotaExceeded
	case code == 401 || code == 403:
		return ErrUnauthenticated
	case code >= 500:
		return ErrTransient
	}
	return nil
}
