package session

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is a wrong password: the caller's fault, no re-login hint.
var ErrUnauthorized = errors.New("invalid credentials")

// UnauthenticatedReason records why a token was rejected. Handlers return
// the same generic message for every reason; the reason exists for logs.
type UnauthenticatedReason string

const (
	ReasonMissing       UnauthenticatedReason = "missing"
	ReasonInvalid       UnauthenticatedReason = "invalid"
	ReasonExpired       UnauthenticatedReason = "expired"
	ReasonReuseDetected UnauthenticatedReason = "reuse detected"
	ReasonStaleSubject  UnauthenticatedReason = "stale subject"
)

// UnauthenticatedError means the caller must log in again.
type UnauthenticatedError struct {
	Reason UnauthenticatedReason
}

func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("unauthenticated: %s", e.Reason)
}

func Unauthenticated(reason UnauthenticatedReason) error {
	return &UnauthenticatedError{Reason: reason}
}

// IsUnauthenticated reports whether err is an UnauthenticatedError of any
// reason.
func IsUnauthenticated(err error) bool {
	var target *UnauthenticatedError
	return errors.As(err, &target)
}
