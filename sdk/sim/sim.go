// Package sim is an in-process stand-in for the depth-camera SDK. It exposes one
// simulated device producing synthetic depth and color frames, and keeps bag
// recordings in memory keyed by path so record and playback can be exercised
// without hardware.
package sim

import (
	"image"
	"sync"

	"github.com/benbjohnson/clock"

	"realsensecontrol/sdk"
)

// BackendName is the name the simulated backend registers under.
const BackendName = "sim"

func init() {
	sdk.RegisterBackend(BackendName, func() (sdk.Backend, error) {
		return New(), nil
	})
}

var (
	supportedSizes = []image.Point{
		{1280, 720}, {848, 480}, {640, 480}, {640, 360}, {480, 270}, {424, 240}, {320, 240},
	}
	supportedFPS = []int{6, 15, 30, 60, 90}
)

// Recording is a capture held by the simulated backend.
type Recording struct {
	Streams []sdk.StreamRequest
	Frames  int
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces the wall clock used for pacing and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(b *Backend) {
		b.clk = clk
	}
}

// WithoutDevice starts the backend with no live device attached.
func WithoutDevice() Option {
	return func(b *Backend) {
		b.present = false
	}
}

// WithRecording seeds a recording at path.
func WithRecording(path string, rec Recording) Option {
	return func(b *Backend) {
		b.recordings[path] = &rec
	}
}

// Backend is the simulated SDK.
type Backend struct {
	mu         sync.Mutex
	clk        clock.Clock
	present    bool
	owner      *pipeline
	recordings map[string]*Recording
	open       int
}

// New returns a simulated backend with a live device attached.
func New(opts ...Option) *Backend {
	b := &Backend{
		clk:        clock.New(),
		present:    true,
		recordings: map[string]*Recording{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name implements sdk.Backend.
func (b *Backend) Name() string {
	return BackendName
}

// SetDevicePresent plugs or unplugs the live device. Unplugging does not stop a
// pipeline that already holds it; its next wait fails with ErrDisconnected.
func (b *Backend) SetDevicePresent(present bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.present = present
}

// AddRecording stores a recording at path, replacing any existing one.
func (b *Backend) AddRecording(path string, rec Recording) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordings[path] = &rec
}

// Recording returns a copy of the recording at path.
func (b *Backend) Recording(path string) (Recording, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.recordings[path]
	if !ok {
		return Recording{}, false
	}
	out := Recording{Frames: rec.Frames}
	out.Streams = append(out.Streams, rec.Streams...)
	return out, true
}

// NewConfig implements sdk.Backend.
func (b *Backend) NewConfig() sdk.Config {
	return &config{streams: map[sdk.Stream]sdk.StreamRequest{}}
}

// NewPipeline implements sdk.Backend.
func (b *Backend) NewPipeline() sdk.Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open++
	return &pipeline{b: b}
}

// OpenPipelines counts pipelines created and not yet closed.
func (b *Backend) OpenPipelines() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *Backend) devicePresent() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.present
}

func supportedMode(req sdk.StreamRequest) bool {
	sizeOK := false
	for _, s := range supportedSizes {
		if s.X == req.Width && s.Y == req.Height {
			sizeOK = true
			break
		}
	}
	if !sizeOK {
		return false
	}
	for _, fps := range supportedFPS {
		if fps == req.FPS {
			return true
		}
	}
	return false
}
