package cloud

import (
	"errors"
	"fmt"
)

// Sentinel errors for the cloud client.
var (
	// ErrNotLoggedIn is returned when an authorized call is made
	// before Login has produced a session.
	ErrNotLoggedIn = errors.New("cloud: not logged in")

	// ErrUnauthorized is returned when the server rejects the bearer
	// token. A one-shot token refresh has already been scheduled by
	// the time the caller sees it.
	ErrUnauthorized = errors.New("cloud: unauthorized")

	// ErrLoginFailed is returned when the token endpoint answers
	// without an access token.
	ErrLoginFailed = errors.New("cloud: login failed")
)

// StatusError is a vendor API envelope with a non-zero code. These
// are recoverable: the caller logs and moves on.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloud: api code %d: %s", e.Code, e.Msg)
}

// RejectedError is a command the server understood but refused. The
// message is shown to the user as the device error text.
type RejectedError struct {
	Msg string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("cloud: command rejected: %s", e.Msg)
}
