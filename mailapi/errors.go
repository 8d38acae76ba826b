package mailapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks a request that never completed.
	ErrNetwork = errors.New("network failure")
	// ErrMalformed marks a response whose body is not what the endpoint promises.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is returned for any non-2xx response. It unwraps to
// ErrMalformed since the body is not the expected payload.
type StatusError struct {
	Code    int
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d on %s", e.Code, e.Path)
	}
	return fmt.Sprintf("unexpected status %d on %s: %s", e.Code, e.Path, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrMalformed }
