package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two backend conditions callers branch on.
// Everything else surfaces as a *StatusError or a wrapped transport error.
var (
	// ErrNotFound means the requested anime, episode or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated means the action requires a signed-in identity
	ErrUnauthenticated = errors.New("unauthenticated")
)

// StatusError is a non-2xx backend response that is neither a 404 nor a 401
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
}

// statusToError maps a backend status code and detail message onto the
// error taxonomy. 2xx maps to nil.
func statusToError(statusCode int, detail string) error {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == 404:
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, detail)
		}
		return ErrNotFound
	case statusCode == 401 || statusCode == 403:
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrUnauthenticated, detail)
		}
		return ErrUnauthenticated
	default:
		return &StatusError{StatusCode: statusCode, Detail: detail}
	}
}
