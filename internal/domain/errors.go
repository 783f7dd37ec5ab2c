// Package domain holds the vocabulary shared by the session controller, the
// capture pipeline and the control surfaces: error kinds, control actions and
// capture modes.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures that are surfaced to the user.
type ErrorKind string

const (
	KindSessionAlreadyActive ErrorKind = "session_already_active"
	KindNoActiveSession      ErrorKind = "no_active_session"
	KindStoreWriteFailed     ErrorKind = "store_write_failed"
	KindRecognitionFailed    ErrorKind = "recognition_failed"
	KindLookupNotFound       ErrorKind = "lookup_not_found"
	KindLookupTransport      ErrorKind = "lookup_transport"
	KindInvalidTitle         ErrorKind = "invalid_title"
	KindUnknownAction        ErrorKind = "unknown_action"
	KindCaptureUnavailable   ErrorKind = "capture_unavailable"
)

// Message returns the short user-facing text for a kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindSessionAlreadyActive:
		return "A reading session is already active"
	case KindNoActiveSession:
		return "Error: No Active Session"
	case KindStoreWriteFailed:
		return "Could not save"
	case KindRecognitionFailed:
		return "Didn't catch that. Please try again."
	case KindLookupNotFound:
		return "No definition found"
	case KindLookupTransport:
		return "Dictionary unavailable"
	case KindInvalidTitle:
		return "Session title must not be empty"
	case KindUnknownAction:
		return "Unknown action"
	case KindCaptureUnavailable:
		return "No capture client connected"
	default:
		return "Unknown error"
	}
}

// Error is a failure tagged with its kind. The wrapped cause is optional.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches bare sentinels of the same kind, so wrapped errors compare equal
// to ErrNoActiveSession and friends.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

var (
	ErrSessionAlreadyActive = &Error{Kind: KindSessionAlreadyActive}
	ErrNoActiveSession      = &Error{Kind: KindNoActiveSession}
	ErrStoreWriteFailed     = &Error{Kind: KindStoreWriteFailed}
	ErrRecognitionFailed    = &Error{Kind: KindRecognitionFailed}
	ErrLookupNotFound       = &Error{Kind: KindLookupNotFound}
	ErrLookupTransport      = &Error{Kind: KindLookupTransport}
	ErrInvalidTitle         = &Error{Kind: KindInvalidTitle}
	ErrUnknownAction        = &Error{Kind: KindUnknownAction}
	ErrCaptureUnavailable   = &Error{Kind: KindCaptureUnavailable}
)

// Wrap tags err with kind. A nil err yields the bare kind.
func Wrap(kind ErrorKind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is untagged.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FromWire rebuilds a tagged error from a kind and message received over the
// control protocol.
func FromWire(kind ErrorKind, message string) error {
	if kind == "" {
		if message == "" {
			return errors.New("request failed")
		}
		return errors.New(message)
	}
	if message == "" || message == kind.Message() {
		return &Error{Kind: kind}
	}
	return &Error{Kind: kind, Err: errors.New(strings.TrimPrefix(message, kind.Message()+": "))}
}
