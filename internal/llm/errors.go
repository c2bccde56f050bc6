package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// ErrEmptyResponse is returned when the provider answers without choices.
var ErrEmptyResponse = errors.New("no choices in response")

// StatusError is a non-2xx HTTP answer from the provider.
type StatusError struct {
	StatusCode int
	Body       string
	API        *Error
}

func (e *StatusError) Error() string {
	if e.API != nil && e.API.Message != "" {
		return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.API.Message)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, truncate(e.Body, 512))
}

func (e *StatusError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	return e.API
}

// IsTransient reports whether retrying the same request may succeed:
// timeouts, network failures, rate limiting and server-side errors.
// Cancellation of the caller's context is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return isTransientStatus(statusErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
