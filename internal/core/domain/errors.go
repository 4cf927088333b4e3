package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLoginFailed         = errors.New("login failed")
	ErrSessionCorrupt      = errors.New("session corrupt")
	ErrIncompleteSession   = errors.New("incomplete session")
	ErrNoPendingMFA        = errors.New("no pending mfa verification")
	ErrSubmissionPending   = errors.New("a submission is already in progress")
	ErrSubmissionCancelled = errors.New("submission cancelled")
	ErrSessionUnavailable  = errors.New("session storage unavailable")
)

// ValidationError is a client-side pre-flight failure on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError carries a rejection from the backend. Message is the
// backend's own text and may be empty.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication rejected (status %d)", e.Status)
	}
	return e.Message
}

// NetworkError reports that the backend could not be reached.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

const (
	MsgLoginFailed = "Login failed. Please check your credentials and try again."
	MsgNetwork     = "Unable to reach the server. Check your connection and try again."
	MsgSession     = "Your session could not be started. Please try again in a moment."
)

// UserMessage is the text shown to a user for a flow error: the backend's
// own message when it gave one, a generic one otherwise.
func UserMessage(err error) string {
	var (
		ve *ValidationError
		ae *AuthenticationError
		ne *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &ae) && ae.Message != "":
		return ae.Message
	case errors.As(err, &ne):
		return MsgNetwork
	case errors.Is(err, ErrSessionUnavailable):
		return MsgSession
	default:
		return MsgLoginFailed
	}
}
