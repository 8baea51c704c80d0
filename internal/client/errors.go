package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Trigger before the handshake completes.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("connection closed")
)

// TransportError describes a failed dial, handshake or established connection.
type TransportError struct {
	Op     string
	Reason DisconnectReason
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	default:
		return e.Op
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is an error envelope sent by the server, such as a handshake refusal.
type ServerError struct {
	Code string
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// APIError is a non-200 response from the token endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Message)
}
