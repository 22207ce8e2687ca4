package realsensecontrol

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"realsensecontrol/sdk"
)

// ErrOperationFailed matches every error returned by the Controller, for callers
// that only care whether an operation worked.
var ErrOperationFailed = errors.New("realsense operation failed")

// ErrorKind classifies Controller failures.
type ErrorKind int

const (
	KindDeviceUnavailable ErrorKind = iota + 1
	KindStreamNegotiationFailed
	KindAcquisitionTimeout
	KindMissingFrameComponent
	KindInvalidConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindDeviceUnavailable:
		return "device unavailable"
	case KindStreamNegotiationFailed:
		return "stream negotiation failed"
	case KindAcquisitionTimeout:
		return "acquisition timeout"
	case KindMissingFrameComponent:
		return "missing frame component"
	case KindInvalidConfiguration:
		return "invalid configuration"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by the Controller.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrOperationFailed.
func (e *Error) Is(target error) bool {
	return target == ErrOperationFailed
}

// KindOf returns the kind of a Controller error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// classify maps a backend error to a kind, falling back to def for errors the
// backend did not tag with an sdk sentinel.
func classify(op string, err error, def ErrorKind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := def
	switch {
	case errors.Is(err, sdk.ErrNoDevice),
		errors.Is(err, sdk.ErrDeviceBusy),
		errors.Is(err, sdk.ErrDisconnected):
		kind = KindDeviceUnavailable
	case errors.Is(err, sdk.ErrUnsupportedStream):
		kind = KindStreamNegotiationFailed
	case errors.Is(err, sdk.ErrTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		kind = KindAcquisitionTimeout
	case errors.Is(err, sdk.ErrFileNotFound),
		errors.Is(err, sdk.ErrInvalidArgument),
		errors.Is(err, sdk.ErrAlreadyStarted),
		errors.Is(err, sdk.ErrClosed),
		errors.Is(err, sdk.ErrNotStarted):
		kind = KindInvalidConfiguration
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
