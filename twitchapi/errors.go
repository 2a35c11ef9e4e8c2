package twitchapi

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is returned for any non-2xx Helix response.
type TransportError struct {
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("twitch api: unexpected status %d", e.Status)
}

// ParseError wraps a response body that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("twitch api: malformed response: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is a 401 from the API. The scheduler treats
// this specially: the stored token is invalidated instead of retrying.
func IsAuthError(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Status == http.StatusUnauthorized
}

// isRetryableError reports whether a request should be reattempted. Rate
// limiting and server errors qualify; 4xx responses and parse failures do not.
func isRetryableError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status == http.StatusTooManyRequests || te.Status >= 500
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	// Plain network errors (connection reset, timeout) come through untyped.
	return true
}
