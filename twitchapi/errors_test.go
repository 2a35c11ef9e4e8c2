package twitchapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"401", &TransportError{Status: http.StatusUnauthorized}, true},
		{"wrapped 401", fmt.Errorf("sync: %w", &TransportError{Status: 401}), true},
		{"404", &TransportError{Status: http.StatusNotFound}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &TransportError{Status: http.StatusTooManyRequests}, true},
		{"server error", &TransportError{Status: http.StatusInternalServerError}, true},
		{"bad gateway", &TransportError{Status: http.StatusBadGateway}, true},
		{"unauthorized", &TransportError{Status: http.StatusUnauthorized}, false},
		{"not found", &TransportError{Status: http.StatusNotFound}, false},
		{"parse failure", &ParseError{Err: errors.New("unexpected EOF")}, false},
		{"network error", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	inner := errors.New("unexpected EOF")
	err := fmt.Errorf("fetch: %w", &ParseError{Err: inner})
	if !errors.Is(err, inner) {
		t.Error("ParseError must unwrap to the decode error")
	}
}
