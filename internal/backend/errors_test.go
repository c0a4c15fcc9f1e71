package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuthentication},
		{http.StatusForbidden, KindAuthentication},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusRequestTimeout, KindTimeout},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusInternalServerError, KindService},
		{http.StatusServiceUnavailable, KindService},
		{http.StatusBadRequest, KindRequest},
		{http.StatusNotFound, KindRequest},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestError_Transient(t *testing.T) {
	tests := []struct {
		err  *Error
		want bool
	}{
		{&Error{Kind: KindRateLimit}, true},
		{&Error{Kind: KindTimeout}, true},
		{&Error{Kind: KindService, StatusCode: 503}, true},
		{&Error{Kind: KindService}, true},
		{&Error{Kind: KindAuthentication, StatusCode: 401}, false},
		{&Error{Kind: KindRequest, StatusCode: 400}, false},
	}
	for _, tt := range tests {
		if got := tt.err.Transient(); got != tt.want {
			t.Errorf("%v.Transient() = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsHelpers_Wrapped(t *testing.T) {
	auth := fmt.Errorf("analyzing: %w", &Error{Kind: KindAuthentication, Provider: "openai", StatusCode: 401})
	if !IsAuthError(auth) {
		t.Error("IsAuthError should see through wrapping")
	}
	if IsTransient(auth) {
		t.Error("auth error must not be transient")
	}
	if IsTransient(errors.New("plain")) || IsAuthError(errors.New("plain")) {
		t.Error("plain errors are neither transient nor auth errors")
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindRateLimit, Provider: "openai", StatusCode: 429, Message: "slow down"}
	want := "openai: rate limit error (status 429): slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestTransportError(t *testing.T) {
	if err := transportError("p", context.Canceled); !errors.Is(err, context.Canceled) || IsTransient(err) {
		t.Errorf("cancellation should pass through untouched, got %v", err)
	}
	var be *Error
	if err := transportError("p", context.DeadlineExceeded); !errors.As(err, &be) || be.Kind != KindTimeout {
		t.Errorf("deadline should map to timeout, got %v", err)
	}
	if err := transportError("p", errors.New("connection refused")); !IsTransient(err) {
		t.Errorf("connection failures should be transient, got %v", err)
	}
}
