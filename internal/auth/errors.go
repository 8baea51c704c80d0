package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when a handshake carries no credential.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken is returned when a credential fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError reports a rejected handshake credential.
// Kind is ErrNoToken or ErrInvalidToken.
type AuthenticationError struct {
	Kind  error
	Cause error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// UpstreamError reports a failed call to the identity provider.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
