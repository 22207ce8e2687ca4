package sim

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"realsensecontrol/sdk"
)

var defaultStreams = []sdk.StreamRequest{
	{Stream: sdk.StreamDepth, Width: 640, Height: 480, Format: sdk.FormatZ16, FPS: 30},
	{Stream: sdk.StreamColor, Width: 640, Height: 480, Format: sdk.FormatBGR8, FPS: 30},
}

type pipeline struct {
	b *Backend

	mu      sync.Mutex
	started bool
	closed  bool
	streams []sdk.StreamRequest
	dev     *device
	source  *Recording

	recordPath string
	recording  *Recording

	frameNo uint64
	next    time.Time
}

func (p *pipeline) Start(cfg sdk.Config) (sdk.Profile, error) {
	c, ok := cfg.(*config)
	if !ok {
		return nil, errors.Wrapf(sdk.ErrInvalidArgument, "config %T does not belong to the %s backend", cfg, BackendName)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, sdk.ErrClosed
	}
	if p.started {
		return nil, sdk.ErrAlreadyStarted
	}

	streams := c.requests()
	var dev *device
	if c.inputFile != "" {
		rec, ok := p.b.Recording(c.inputFile)
		if !ok {
			return nil, errors.Wrapf(sdk.ErrFileNotFound, "%q", c.inputFile)
		}
		if len(streams) == 0 {
			streams = rec.Streams
		}
		for _, req := range streams {
			if !recorded(rec, req) {
				return nil, errors.Wrapf(sdk.ErrUnsupportedStream, "%s not in %q", req, c.inputFile)
			}
		}
		p.source = &rec
		dev = &device{
			name:     "Simulated Playback",
			serial:   "sim-playback",
			playback: &playback{path: c.inputFile, realTime: true},
		}
	} else {
		if len(streams) == 0 {
			streams = defaultStreams
		}
		for _, req := range streams {
			if !supportedMode(req) {
				return nil, errors.Wrapf(sdk.ErrUnsupportedStream, "%s", req)
			}
		}
		p.b.mu.Lock()
		switch {
		case !p.b.present:
			p.b.mu.Unlock()
			return nil, sdk.ErrNoDevice
		case p.b.owner != nil:
			p.b.mu.Unlock()
			return nil, sdk.ErrDeviceBusy
		}
		p.b.owner = p
		p.b.mu.Unlock()

		p.source = nil
		dev = &device{name: "Simulated Depth Camera", serial: "sim-0001"}
		if c.recordFile != "" {
			p.recordPath = c.recordFile
			p.recording = &Recording{Streams: append([]sdk.StreamRequest(nil), streams...)}
		}
	}

	p.started = true
	p.streams = streams
	p.dev = dev
	p.frameNo = 0
	p.next = p.b.clk.Now()
	return &profile{dev: dev, streams: streams}, nil
}

func (p *pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return sdk.ErrNotStarted
	}
	p.stopLocked()
	return nil
}

func (p *pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.started {
		p.stopLocked()
	}
	p.closed = true

	p.b.mu.Lock()
	p.b.open--
	p.b.mu.Unlock()
	return nil
}

func (p *pipeline) stopLocked() {
	p.b.mu.Lock()
	if p.b.owner == p {
		p.b.owner = nil
	}
	if p.recording != nil {
		p.b.recordings[p.recordPath] = p.recording
	}
	p.b.mu.Unlock()

	p.started = false
	p.recording = nil
	p.recordPath = ""
	p.source = nil
	p.dev = nil
}

func (p *pipeline) WaitForFrames(timeout time.Duration) (sdk.FrameSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, sdk.ErrNotStarted
	}
	if p.source == nil && !p.b.devicePresent() {
		return nil, sdk.ErrDisconnected
	}
	if p.source != nil && p.source.Frames == 0 {
		p.b.clk.Sleep(timeout)
		return nil, errors.Wrapf(sdk.ErrTimeout, "%v", timeout)
	}

	if p.paced() {
		now := p.b.clk.Now()
		if wait := p.next.Sub(now); wait > 0 {
			if wait > timeout {
				p.b.clk.Sleep(timeout)
				return nil, errors.Wrapf(sdk.ErrTimeout, "%v", timeout)
			}
			p.b.clk.Sleep(wait)
			now = p.next
		}
		p.next = now.Add(p.period())
	}

	index := p.frameNo
	if p.source != nil {
		index = p.frameNo % uint64(p.source.Frames)
	}
	ts := p.b.clk.Now()
	set := &frameSet{}
	for _, req := range p.streams {
		set.frames = append(set.frames, synthesize(req, index, ts))
	}
	p.frameNo++
	if p.recording != nil {
		p.recording.Frames++
	}
	return set, nil
}

// paced reports whether frames are delivered at the stream rate: always for a
// live device, and for playback only in real-time mode.
func (p *pipeline) paced() bool {
	if p.dev == nil || p.dev.playback == nil {
		return true
	}
	rt, _ := p.dev.playback.RealTime()
	return rt
}

func (p *pipeline) period() time.Duration {
	fps := 0
	for _, s := range p.streams {
		if s.FPS > fps {
			fps = s.FPS
		}
	}
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

func recorded(rec Recording, req sdk.StreamRequest) bool {
	for _, s := range rec.Streams {
		if s.Stream == req.Stream && s.Width == req.Width && s.Height == req.Height &&
			(req.FPS == 0 || s.FPS == req.FPS) &&
			(req.Format == sdk.FormatAny || s.Format == req.Format) {
			return true
		}
	}
	return false
}

type profile struct {
	dev     *device
	streams []sdk.StreamRequest
}

func (p *profile) Device() (sdk.Device, error) {
	return p.dev, nil
}

func (p *profile) Streams() []sdk.StreamRequest {
	return append([]sdk.StreamRequest(nil), p.streams...)
}

type device struct {
	name     string
	serial   string
	playback *playback
}

func (d *device) Name() string   { return d.name }
func (d *device) Serial() string { return d.serial }

func (d *device) AsPlayback() (sdk.Playback, bool) {
	if d.playback == nil {
		return nil, false
	}
	return d.playback, true
}

type playback struct {
	mu       sync.Mutex
	path     string
	realTime bool
}

func (pb *playback) FilePath() string {
	return pb.path
}

func (pb *playback) SetRealTime(realTime bool) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.realTime = realTime
	return nil
}

func (pb *playback) RealTime() (bool, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.realTime, nil
}
