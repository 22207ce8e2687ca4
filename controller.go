package realsensecontrol

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"realsensecontrol/sdk"
)

// LogLevel selects whether the Controller reports failures through its logger.
type LogLevel int

const (
	LogAll LogLevel = iota
	LogSilent
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogLevel sets the controller's log level.
func WithLogLevel(level LogLevel) Option {
	return func(c *Controller) {
		c.logLevel = level
	}
}

// WithFrameTimeout bounds how long GetFrames waits for a frame set.
func WithFrameTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.frameTimeout = d
		}
	}
}

// InitOptions are the arguments of Initialize. Zero geometry fields take the
// defaults.
type InitOptions struct {
	Width  int
	Height int
	FPS    int

	// InputFile plays back a recorded capture instead of using a live device.
	InputFile        string
	RealTimePlayback bool

	// OutputFile records the live session. Ignored when InputFile is set.
	OutputFile string
}

func (o InitOptions) withDefaults() InitOptions {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.FPS == 0 {
		o.FPS = DefaultFPS
	}
	return o
}

// Controller owns one capture pipeline and turns its frames into image
// buffers. It is not safe for concurrent use.
type Controller struct {
	backend      sdk.Backend
	pipeline     sdk.Pipeline
	profile      sdk.Profile
	streaming    bool
	logger       logging.Logger
	logLevel     LogLevel
	frameTimeout time.Duration
}

// NewController returns an idle controller with a fresh pipeline from b.
func NewController(b sdk.Backend, logger logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		backend:      b,
		pipeline:     NewPipeline(b),
		logger:       logger,
		frameTimeout: DefaultFrameTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Initialize configures the streams and starts the pipeline. If anything fails
// after the pipeline started, it is stopped again before returning.
func (c *Controller) Initialize(ctx context.Context, opts InitOptions) (sdk.Profile, error) {
	const op = "initialize"
	prof, err := c.initialize(ctx, opts.withDefaults())
	if err != nil {
		e := classify(op, err, KindStreamNegotiationFailed)
		c.logError("error during camera initialization", e)
		return nil, e
	}
	return prof, nil
}

func (c *Controller) initialize(ctx context.Context, opts InitOptions) (sdk.Profile, error) {
	if c.streaming {
		return nil, &Error{Op: "initialize", Kind: KindInvalidConfiguration, Err: errors.New("pipeline is already streaming")}
	}
	if opts.Width < 0 || opts.Height < 0 || opts.FPS < 0 {
		return nil, &Error{
			Op:   "initialize",
			Kind: KindInvalidConfiguration,
			Err:  errors.Errorf("invalid geometry %dx%d@%d", opts.Width, opts.Height, opts.FPS),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "initialize", Kind: KindAcquisitionTimeout, Err: err}
	}

	cfg := NewConfiguration(c.backend)
	if opts.InputFile != "" {
		if err := cfg.EnableDeviceFromFile(opts.InputFile); err != nil {
			return nil, err
		}
	}
	if err := EnableStreams(cfg, opts.Width, opts.Height, opts.FPS); err != nil {
		return nil, err
	}
	if opts.OutputFile != "" {
		if opts.InputFile == "" {
			if err := cfg.EnableRecordToFile(opts.OutputFile); err != nil {
				return nil, err
			}
		} else if c.logLevel != LogSilent {
			c.logger.Warnw("cannot play back and record at the same time, no output will be saved",
				"input_file", opts.InputFile, "output_file", opts.OutputFile)
		}
	}

	prof, err := c.pipeline.Start(cfg)
	if err != nil {
		return nil, err
	}

	if opts.InputFile != "" {
		if err := setRealTime(prof, opts.RealTimePlayback); err != nil {
			return nil, multierr.Combine(err, c.pipeline.Stop())
		}
	}

	c.profile = prof
	c.streaming = true
	c.logger.Debugw("pipeline started", "streams", prof.Streams())
	return prof, nil
}

func setRealTime(prof sdk.Profile, realTime bool) error {
	dev, err := prof.Device()
	if err != nil {
		return err
	}
	pb, ok := dev.AsPlayback()
	if !ok {
		return errors.Wrap(sdk.ErrInvalidArgument, "file-backed device has no playback control")
	}
	return pb.SetRealTime(realTime)
}

// GetFrames waits for one frame set and returns its color and depth images.
// It never returns only one of the two.
func (c *Controller) GetFrames(ctx context.Context) (rgb, depth *ImageBuffer, err error) {
	const op = "get frames"
	rgb, depth, err = c.getFrames(ctx)
	if err != nil {
		e := classify(op, err, KindAcquisitionTimeout)
		c.logError("could not get frames from camera", e)
		return nil, nil, e
	}
	return rgb, depth, nil
}

func (c *Controller) getFrames(ctx context.Context) (*ImageBuffer, *ImageBuffer, error) {
	if !c.streaming {
		return nil, nil, &Error{Op: "get frames", Kind: KindInvalidConfiguration, Err: sdk.ErrNotStarted}
	}
	timeout := c.frameTimeout
	deadlineBound := false
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
			deadlineBound = true
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, &Error{Op: "get frames", Kind: KindAcquisitionTimeout, Err: err}
	}
	if timeout <= 0 {
		return nil, nil, &Error{Op: "get frames", Kind: KindAcquisitionTimeout, Err: context.DeadlineExceeded}
	}

	fs, err := WaitForFrames(c.pipeline, timeout)
	if err != nil {
		if deadlineBound && errors.Is(err, sdk.ErrTimeout) {
			err = multierr.Combine(err, context.DeadlineExceeded)
		}
		return nil, nil, err
	}
	defer fs.Release()

	colorFrame, ok := ColorFrame(fs)
	if !ok {
		return nil, nil, &Error{Op: "get frames", Kind: KindMissingFrameComponent, Err: errors.New("frame set has no color frame")}
	}
	depthFrame, ok := DepthFrame(fs)
	if !ok {
		return nil, nil, &Error{Op: "get frames", Kind: KindMissingFrameComponent, Err: errors.New("frame set has no depth frame")}
	}

	rgb, err := ToImageBuffer(colorFrame)
	if err != nil {
		return nil, nil, &Error{Op: "get frames", Kind: KindMissingFrameComponent, Err: err}
	}
	depth, err := ToImageBuffer(depthFrame)
	if err != nil {
		return nil, nil, &Error{Op: "get frames", Kind: KindMissingFrameComponent, Err: err}
	}
	return rgb, depth, nil
}

// IsStreaming reports whether Initialize succeeded and Stop has not been called
// since.
func (c *Controller) IsStreaming() bool {
	return c.streaming
}

// Profile returns the profile of the running session, or nil.
func (c *Controller) Profile() sdk.Profile {
	if !c.streaming {
		return nil
	}
	return c.profile
}

// Stop stops the pipeline. It is a no-op when not streaming.
func (c *Controller) Stop() error {
	if !c.streaming {
		return nil
	}
	c.streaming = false
	c.profile = nil
	if err := c.pipeline.Stop(); err != nil {
		e := classify("stop", err, KindDeviceUnavailable)
		c.logError("error stopping pipeline", e)
		return e
	}
	return nil
}

// Close stops the pipeline and releases it. The controller cannot be
// initialized again afterwards.
func (c *Controller) Close() error {
	err := c.Stop()
	if cerr := c.pipeline.Close(); cerr != nil {
		e := classify("close", cerr, KindDeviceUnavailable)
		c.logError("error closing pipeline", e)
		err = multierr.Combine(err, e)
	}
	return err
}

func (c *Controller) logError(msg string, err error) {
	if c.logLevel == LogSilent {
		return
	}
	c.logger.Errorw(msg, "error", err)
}
