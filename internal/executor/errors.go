package executor

import (
	"errors"
	"fmt"
)

// ErrTimeout reports a caller-imposed deadline expiring while a call was
// waiting on the network or a backoff sleep. It is deliberately distinct from
// ExhaustedError: the caller ran out of time, not the retry budget.
var ErrTimeout = errors.New("request deadline exceeded")

// AuthError reports a request rejected as unauthenticated. The credential has
// already been invalidated when this is returned; the caller needs a new
// token, not a retry.
type AuthError struct {
	Service string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (status %d)", e.Service, e.Status)
}

// ClientError reports a non-auth client failure (bad input, not found).
// Retrying a malformed request cannot succeed, so these surface immediately
// with the remote service's error body attached.
type ClientError struct {
	Service string
	Status  int
	Body    []byte
}

func (e *ClientError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("%s: API status %d: %s", e.Service, e.Status, truncate(e.Body))
	}
	return fmt.Sprintf("%s: API status %d", e.Service, e.Status)
}

// ExhaustedError reports that every attempt failed on transient errors.
// LastErr carries the final underlying failure for diagnostics.
type ExhaustedError struct {
	Service  string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: request failed after %d attempts: %v", e.Service, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// truncate caps remote error bodies included in error strings.
func truncate(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
