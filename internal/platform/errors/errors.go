package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindBootstrap Kind = "bootstrap"
	KindTransport Kind = "transport"
	KindEngine    Kind = "engine"
	KindUnknown   Kind = "unknown"

	// Read lifecycle outcomes surfaced to the HTTP boundary.
	KindDeviceNotFound   Kind = "device_not_found"
	KindDeviceOpenFailed Kind = "device_open_failed"
	KindNoDocument       Kind = "no_document"
	KindChipReadFailed   Kind = "chip_read_failed"
	KindReadFailed       Kind = "read_failed"
	KindTimeout          Kind = "timeout"
	KindReadInProgress   Kind = "read_in_progress"
	KindUnauthorized     Kind = "unauthorized"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first typed error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind
		}
		err = errors.Unwrap(err)
	}
	return KindUnknown
}
