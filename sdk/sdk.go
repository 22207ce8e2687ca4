// Package sdk describes the surface of the vendor depth-camera SDK that the
// controller drives. Implementations live in sub-packages: librealsense binds the
// real library, sim is an in-process stand-in.
package sdk

import (
	"fmt"
	"time"
)

// Stream identifies a sensor data channel.
type Stream int

const (
	StreamAny Stream = iota
	StreamDepth
	StreamColor
)

func (s Stream) String() string {
	switch s {
	case StreamDepth:
		return "depth"
	case StreamColor:
		return "color"
	case StreamAny:
		return "any"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// Format is the pixel layout of a stream.
type Format int

const (
	FormatAny Format = iota
	FormatZ16
	FormatBGR8
	FormatRGB8
)

func (f Format) String() string {
	switch f {
	case FormatZ16:
		return "z16"
	case FormatBGR8:
		return "bgr8"
	case FormatRGB8:
		return "rgb8"
	case FormatAny:
		return "any"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Channels returns the number of samples per pixel, 0 for unknown formats.
func (f Format) Channels() int {
	switch f {
	case FormatZ16:
		return 1
	case FormatBGR8, FormatRGB8:
		return 3
	default:
		return 0
	}
}

// BytesPerPixel returns the packed size of one pixel, 0 for unknown formats.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatZ16:
		return 2
	case FormatBGR8, FormatRGB8:
		return 3
	default:
		return 0
	}
}

// StreamRequest asks the device for one stream at a given geometry.
type StreamRequest struct {
	Stream Stream
	Width  int
	Height int
	Format Format
	FPS    int
}

func (r StreamRequest) String() string {
	return fmt.Sprintf("%s %dx%d %s@%d", r.Stream, r.Width, r.Height, r.Format, r.FPS)
}

// Config collects the streams and source/sink a pipeline will be started with.
type Config interface {
	EnableStream(req StreamRequest) error
	EnableDeviceFromFile(path string) error
	EnableRecordToFile(path string) error
}

// Pipeline is an acquisition session bound to one device or file while started.
type Pipeline interface {
	Start(cfg Config) (Profile, error)
	Stop() error
	WaitForFrames(timeout time.Duration) (FrameSet, error)
	// Close stops the pipeline if it is running and releases it. A closed
	// pipeline cannot be started again.
	Close() error
}

// Profile is returned by a successful Start.
type Profile interface {
	Device() (Device, error)
	Streams() []StreamRequest
}

// Device is the device (real or file-backed) a pipeline is bound to.
type Device interface {
	Name() string
	Serial() string
	// AsPlayback returns the playback controls of a file-backed device.
	AsPlayback() (Playback, bool)
}

// Playback controls a file-backed device.
type Playback interface {
	FilePath() string
	SetRealTime(realTime bool) error
	RealTime() (bool, error)
}

// FrameSet is a synchronized set of frames, one per enabled stream.
// Release must be called once the frames are no longer needed.
type FrameSet interface {
	Frames() []Frame
	Release()
}

// Frame is a single sensor frame. Data is only valid until the owning FrameSet
// is released.
type Frame interface {
	Stream() Stream
	Format() Format
	Width() int
	Height() int
	Stride() int
	Number() uint64
	Timestamp() time.Time
	Data() []byte
}

// Backend creates configurations and pipelines for one SDK implementation.
type Backend interface {
	Name() string
	NewConfig() Config
	NewPipeline() Pipeline
}

// FindFrame returns the first frame of the given stream in the set.
func FindFrame(fs FrameSet, s Stream) (Frame, bool) {
	if fs == nil {
		return nil, false
	}
	for _, f := range fs.Frames() {
		if f != nil && f.Stream() == s {
			return f, true
		}
	}
	return nil, false
}
