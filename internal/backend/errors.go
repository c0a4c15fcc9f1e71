package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies backend failures.
type Kind int

const (
	KindService Kind = iota
	KindAuthentication
	KindRateLimit
	KindTimeout
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate limit"
	case KindTimeout:
		return "timeout"
	case KindRequest:
		return "request"
	default:
		return "service"
	}
}

// Error is returned by every provider for failed invocations.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying may succeed: rate limits, timeouts and
// 5xx service errors.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindRateLimit, KindTimeout:
		return true
	case KindService:
		return e.StatusCode == 0 || e.StatusCode >= 500
	default:
		return false
	}
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindAuthentication
}

// IsTransient checks if an error may succeed on retry.
func IsTransient(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Transient()
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindService
	default:
		return KindRequest
	}
}

// statusError builds an Error from an HTTP status and response body.
func statusError(provider string, status int, body string, cause error) *Error {
	return &Error{
		Kind:       classifyStatus(status),
		Provider:   provider,
		StatusCode: status,
		Message:    body,
		Err:        cause,
	}
}

// transportError wraps a failure that happened before any HTTP status was
// received. Deadline expiry is a timeout; cancellation is passed through.
func transportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Provider: provider, Err: err}
	}
	return &Error{Kind: KindService, Provider: provider, Err: err}
}
