package realsensecontrol

import (
	"time"

	"github.com/pkg/errors"

	"realsensecontrol/sdk"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 30

	// DefaultFrameTimeout matches the SDK's own wait_for_frames default.
	DefaultFrameTimeout = 5 * time.Second
)

// NewConfiguration returns an empty stream configuration.
func NewConfiguration(b sdk.Backend) sdk.Config {
	return b.NewConfig()
}

// NewPipeline returns an unstarted pipeline.
func NewPipeline(b sdk.Backend) sdk.Pipeline {
	return b.NewPipeline()
}

// EnableStreams requests a Z16 depth stream and a BGR8 color stream at the given
// resolution and frame rate. Enabling again replaces the earlier requests.
func EnableStreams(cfg sdk.Config, width, height, fps int) error {
	depth := sdk.StreamRequest{Stream: sdk.StreamDepth, Width: width, Height: height, Format: sdk.FormatZ16, FPS: fps}
	if err := cfg.EnableStream(depth); err != nil {
		return errors.Wrap(err, "enabling depth stream")
	}
	color := sdk.StreamRequest{Stream: sdk.StreamColor, Width: width, Height: height, Format: sdk.FormatBGR8, FPS: fps}
	if err := cfg.EnableStream(color); err != nil {
		return errors.Wrap(err, "enabling color stream")
	}
	return nil
}

// WaitForFrames blocks until the pipeline delivers the next frame set.
func WaitForFrames(p sdk.Pipeline, timeout time.Duration) (sdk.FrameSet, error) {
	return p.WaitForFrames(timeout)
}

// DepthFrame projects the depth frame out of a frame set.
func DepthFrame(fs sdk.FrameSet) (sdk.Frame, bool) {
	return sdk.FindFrame(fs, sdk.StreamDepth)
}

// ColorFrame projects the color frame out of a frame set.
func ColorFrame(fs sdk.FrameSet) (sdk.Frame, bool) {
	return sdk.FindFrame(fs, sdk.StreamColor)
}
