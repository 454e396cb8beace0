package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("application not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMissingConfig   = errors.New("missing required configuration")
)

// AuthError means the gateway rejected our credentials. The raw response body is
// kept because Daraja error payloads carry the actionable diagnostic codes.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway auth failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gateway auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError wraps any non-auth HTTP failure talking to the payment gateway,
// including timeouts. Body is empty when no response was received.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway request failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gateway request failed: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
