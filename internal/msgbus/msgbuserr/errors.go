// Package msgbuserr defines the closed set of error kinds the bus and its
// storage backends raise, so callers can branch on Kind instead of
// matching error strings or sentinel values scattered across packages.
package msgbuserr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a bus-level failure.
type Kind int

const (
	// KindClockMovedBackwards means idgen observed wall-clock time move
	// backwards relative to the last generated id.
	KindClockMovedBackwards Kind = iota
	// KindUnknownRecipient means a routing policy or Send call named a
	// recipient the bus has no registered client for.
	KindUnknownRecipient
	// KindStorageError wraps a failure from a storage.Backend.
	KindStorageError
	// KindInvalidArgument means caller-supplied input failed validation
	// (e.g. an empty sender passed to Send, or an empty recipient list
	// passed to RemoveReceivedMessage).
	KindInvalidArgument
	// KindRateLimited means a sender exceeded its configured send rate.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindClockMovedBackwards:
		return "clock_moved_backwards"
	case KindUnknownRecipient:
		return "unknown_recipient"
	case KindStorageError:
		return "storage_error"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is the bus's concrete error type: a Kind plus a message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, msgbuserr.New(KindX, "")) match on Kind alone,
// ignoring Message and Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
