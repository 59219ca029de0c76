package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindUnavailable: the upstream is unreachable or returned a server
	// error; treated as permanent for the current call.
	KindUnavailable ErrorKind = "unavailable"

	// KindRateLimited: the upstream throttled the request; retryable.
	KindRateLimited ErrorKind = "rate_limited"

	// KindInvalidSpec: the request itself is malformed (unknown symbol,
	// unknown source); deterministic, never retried.
	KindInvalidSpec ErrorKind = "invalid_spec"

	// KindTimeout: the request exceeded its deadline; retryable.
	KindTimeout ErrorKind = "timeout"
)

// FetchError is the per-source error type surfaced in scan diagnostics.
type FetchError struct {
	Kind    ErrorKind
	Source  string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Source, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the coordinator may retry this failure once.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindRateLimited
}

// NewFetchError creates a FetchError wrapping an optional cause.
func NewFetchError(kind ErrorKind, source, message string, err error) *FetchError {
	return &FetchError{Kind: kind, Source: source, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain, ok=false when the
// chain holds no FetchError.
func KindOf(err error) (ErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// ClassifyHTTPStatus maps an upstream HTTP status to an error kind.
func ClassifyHTTPStatus(source string, status int) *FetchError {
	switch {
	case status == http.StatusTooManyRequests:
		return NewFetchError(KindRateLimited, source, fmt.Sprintf("http %d", status), nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewFetchError(KindTimeout, source, fmt.Sprintf("http %d", status), nil)
	case status >= 400 && status < 500:
		return NewFetchError(KindInvalidSpec, source, fmt.Sprintf("http %d", status), nil)
	default:
		return NewFetchError(KindUnavailable, source, fmt.Sprintf("http %d", status), nil)
	}
}

// ClassifyTransportError maps a transport-level error to an error kind:
// deadlines and network timeouts become Timeout, everything else Unavailable.
func ClassifyTransportError(source string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFetchError(KindTimeout, source, "request deadline exceeded", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewFetchError(KindTimeout, source, "request timed out", err)
	}
	return NewFetchError(KindUnavailable, source, "request failed", err)
}
