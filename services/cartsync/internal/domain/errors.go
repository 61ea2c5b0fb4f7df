package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a cart sync failure so callers can choose between a login
// prompt and a transient-error message.
type Kind string

const (
	KindAuthRequired      Kind = "auth_required"
	KindNetworkFailure    Kind = "network_failure"
	KindServerRejected    Kind = "server_rejected"
	KindMalformedResponse Kind = "malformed_response"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrNetwork      = errors.New("network failure")
	ErrRejected     = errors.New("rejected by server")
	ErrMalformed    = errors.New("malformed response")
)

// Error is the error recorded in State and returned by remote operations.
type Error struct {
	Kind    Kind   `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthRequired:
		return e.Kind == KindAuthRequired
	case ErrNetwork:
		return e.Kind == KindNetworkFailure
	case ErrRejected:
		return e.Kind == KindServerRejected
	case ErrMalformed:
		return e.Kind == KindMalformedResponse
	}
	return false
}

func (e *Error) clone() *Error {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// AuthRequired reports a missing or rejected session credential.
func AuthRequired(message string) *Error {
	if message == "" {
		message = "not authenticated"
	}
	return &Error{Kind: KindAuthRequired, Message: message}
}

// NetworkFailure wraps a transport, timeout or availability failure.
func NetworkFailure(err error) *Error {
	return &Error{Kind: KindNetworkFailure, Message: "network failure", Err: err}
}

// Rejected carries a non-2xx response's structured reason and message.
func Rejected(status int, reason, message string) *Error {
	if message == "" {
		message = "request rejected"
	}
	return &Error{Kind: KindServerRejected, Reason: reason, Message: message, Status: status}
}

// Malformed reports a 2xx response of unexpected shape.
func Malformed(message string) *Error {
	return &Error{Kind: KindMalformedResponse, Message: message}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError converts err into an *Error. Foreign errors are treated as
// network failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NetworkFailure(err)
}
