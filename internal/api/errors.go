package api

import (
	"errors"
	"fmt"
)

// AuthError is a rejected login or signup. Detail is the server's message,
// shown to the user as-is.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("authentication failed (HTTP %d)", e.Status)
	}
	return e.Detail
}

// EntitlementError means the credential is valid but not allowed to use a
// pro resource (HTTP 401/403 on a pro endpoint).
type EntitlementError struct {
	Status int
	Detail string
}

func (e *EntitlementError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("not entitled (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("not entitled: %s", e.Detail)
}

// TransportError covers network failures, unexpected statuses and bodies
// that do not decode. Status is 0 when no response was received.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrCheckoutUnavailable is returned when the billing endpoint answers
// without a checkout URL.
var ErrCheckoutUnavailable = errors.New("checkout unavailable")

// IsEntitlement reports whether err is an EntitlementError.
func IsEntitlement(err error) bool {
	var e *EntitlementError
	return errors.As(err, &e)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}
