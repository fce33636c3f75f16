package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindMalformed   ErrorKind = "malformed"
	KindServer      ErrorKind = "server"
	KindUnsupported ErrorKind = "unsupported"
)

// ProviderError is returned by every adapter when the remote service fails.
// Callers match it with errors.As.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindFromStatus maps an HTTP status code to an ErrorKind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	default:
		return KindServer
	}
}

// AsProviderError reports whether err carries a *ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func statusError(provider, op string, status int) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       KindFromStatus(status),
		StatusCode: status,
		Err:        fmt.Errorf("%s: unexpected status %d", op, status),
	}
}

func networkError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindNetwork, Err: fmt.Errorf("%s: %w", op, err)}
}

func malformedError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindMalformed, Err: fmt.Errorf("%s: %w", op, err)}
}
