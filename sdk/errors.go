package sdk

import "github.com/pkg/errors"

// Failure signals a backend may return. Backends wrap these so callers can
// classify with errors.Is.
var (
	ErrNoDevice          = errors.New("no device connected")
	ErrDeviceBusy        = errors.New("device is in use by another pipeline")
	ErrDisconnected      = errors.New("device disconnected")
	ErrTimeout           = errors.New("frame didn't arrive in time")
	ErrNotStarted        = errors.New("pipeline not started")
	ErrAlreadyStarted    = errors.New("pipeline already started")
	ErrClosed            = errors.New("pipeline closed")
	ErrUnsupportedStream = errors.New("couldn't resolve requested stream")
	ErrFileNotFound      = errors.New("capture file not found")
	ErrInvalidArgument   = errors.New("invalid argument")
)
