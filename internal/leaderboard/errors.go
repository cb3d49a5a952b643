// internal/leaderboard/errors.go
package leaderboard

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrThrottled is returned for HTTP 403, which the API uses to signal rate limiting.
	ErrThrottled = errors.New("leaderboard: request throttled")
	// ErrUnsuccessful is returned when the envelope carries success=false.
	ErrUnsuccessful = errors.New("leaderboard: unsuccessful response")
	// ErrNoData is returned when a successful envelope has no usable payload.
	ErrNoData = errors.New("leaderboard: no data")
)

// StatusError reports a non-2xx response other than 403.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("leaderboard: unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// IsRequestFailure reports whether err means the request itself failed
// (transport error, non-2xx or throttling) as opposed to an unusable body.
func IsRequestFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) || errors.Is(err, ErrThrottled) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}

// TransportError wraps a failure to complete the HTTP exchange.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "leaderboard: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
