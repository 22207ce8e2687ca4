package realsensecontrol

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/utils"

	"realsensecontrol/sdk"
)

var (
	NamespaceFamily = resource.NewModelFamily("viam-labs", "realsense-control")
	RealsenseCamera = NamespaceFamily.WithModel("realsense")
)

const (
	defaultBackend = "librealsense"

	colorSourceName = "color"
	depthSourceName = "depth"
)

func init() {
	resource.RegisterComponent(camera.API, RealsenseCamera,
		resource.Registration[camera.Camera, *Config]{
			Constructor: newRealsenseCamera,
		},
	)
}

type Config struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	FPS    int `json:"fps,omitempty"`

	InputFile        string `json:"input_file,omitempty"`
	RealTimePlayback bool   `json:"real_time_playback,omitempty"`
	OutputFile       string `json:"output_file,omitempty"`

	// Backend names the sdk backend, librealsense unless set.
	Backend        string `json:"backend,omitempty"`
	FrameTimeoutMs int    `json:"frame_timeout_ms,omitempty"`
	Silent         bool   `json:"silent,omitempty"`

	// DepthScaleMM converts raw depth units to millimetres for point clouds.
	DepthScaleMM float64                             `json:"depth_scale_mm,omitempty"`
	Intrinsics   *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
}

func (cfg *Config) getBackend() string {
	if cfg.Backend == "" {
		return defaultBackend
	}
	return cfg.Backend
}

func (cfg *Config) getDepthScaleMM() float64 {
	if cfg.DepthScaleMM <= 0 {
		return 1
	}
	return cfg.DepthScaleMM
}

func (cfg *Config) initOptions() InitOptions {
	return InitOptions{
		Width:            cfg.Width,
		Height:           cfg.Height,
		FPS:              cfg.FPS,
		InputFile:        cfg.InputFile,
		RealTimePlayback: cfg.RealTimePlayback,
		OutputFile:       cfg.OutputFile,
	}
}

func (cfg *Config) controllerOptions() []Option {
	opts := []Option{}
	if cfg.Silent {
		opts = append(opts, WithLogLevel(LogSilent))
	}
	if cfg.FrameTimeoutMs > 0 {
		opts = append(opts, WithFrameTimeout(time.Duration(cfg.FrameTimeoutMs)*time.Millisecond))
	}
	return opts
}

// Validate rejects negative geometry. Setting both input_file and output_file is
// allowed; recording is then skipped with a warning.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Width < 0 || cfg.Height < 0 {
		return nil, fmt.Errorf("%s: width and height must not be negative", path)
	}
	if cfg.FPS < 0 {
		return nil, fmt.Errorf("%s: fps must not be negative", path)
	}
	if cfg.FrameTimeoutMs < 0 {
		return nil, fmt.Errorf("%s: frame_timeout_ms must not be negative", path)
	}
	if cfg.Intrinsics != nil && (cfg.Intrinsics.Fx <= 0 || cfg.Intrinsics.Fy <= 0) {
		return nil, fmt.Errorf("%s: intrinsic_parameters need positive fx and fy", path)
	}
	return nil, nil
}

type realsenseCamera struct {
	resource.AlwaysRebuild

	name resource.Name

	logger logging.Logger
	cfg    *Config

	mu   sync.Mutex
	ctrl *Controller
}

func newRealsenseCamera(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (camera.Camera, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	backend, err := sdk.LookupBackend(conf.getBackend())
	if err != nil {
		return nil, err
	}
	return NewRealsenseCamera(ctx, backend, rawConf.ResourceName(), conf, logger)
}

// NewRealsenseCamera starts a controller on backend and wraps it as a camera.
func NewRealsenseCamera(ctx context.Context, backend sdk.Backend, name resource.Name, conf *Config, logger logging.Logger) (camera.Camera, error) {
	ctrl := NewController(backend, logger, conf.controllerOptions()...)
	if _, err := ctrl.Initialize(ctx, conf.initOptions()); err != nil {
		return nil, multierr.Combine(err, ctrl.Close())
	}

	return &realsenseCamera{
		name:   name,
		logger: logger,
		cfg:    conf,
		ctrl:   ctrl,
	}, nil
}

func (rc *realsenseCamera) Name() resource.Name {
	return rc.name
}

func (rc *realsenseCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	switch cmd["command"] {
	case "status":
		out := map[string]interface{}{"streaming": rc.ctrl.IsStreaming()}
		prof := rc.ctrl.Profile()
		if prof == nil {
			return out, nil
		}
		dev, err := prof.Device()
		if err != nil {
			return nil, err
		}
		out["device"] = dev.Name()
		out["serial"] = dev.Serial()
		if pb, ok := dev.AsPlayback(); ok {
			out["playback_file"] = pb.FilePath()
			rt, err := pb.RealTime()
			if err != nil {
				return nil, err
			}
			out["real_time"] = rt
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown command %v", cmd["command"])
	}
}

func (rc *realsenseCamera) Close(context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.ctrl.Close()
}

func (rc *realsenseCamera) frames(ctx context.Context) (*ImageBuffer, *ImageBuffer, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.ctrl.GetFrames(ctx)
}

func (rc *realsenseCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	rgb, depth, err := rc.frames(ctx)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	var img image.Image
	switch mimeType {
	case utils.MimeTypeRawDepth:
		img, err = depth.DepthMap()
	case "":
		mimeType = utils.MimeTypeJPEG
		img, err = rgb.Image()
	default:
		img, err = rgb.Image()
	}
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	data, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	return data, camera.ImageMetadata{MimeType: mimeType}, nil
}

func (rc *realsenseCamera) Images(ctx context.Context) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	rgb, depth, err := rc.frames(ctx)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	capturedAt := time.Now()

	colorImg, err := rgb.Image()
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	dm, err := depth.DepthMap()
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	return []camera.NamedImage{
		{Image: colorImg, SourceName: colorSourceName},
		{Image: dm, SourceName: depthSourceName},
	}, resource.ResponseMetadata{CapturedAt: capturedAt}, nil
}

func (rc *realsenseCamera) NextPointCloud(ctx context.Context) (pointcloud.PointCloud, error) {
	if rc.cfg.Intrinsics == nil {
		return nil, fmt.Errorf("point clouds need intrinsic_parameters in the config")
	}
	rgb, depth, err := rc.frames(ctx)
	if err != nil {
		return nil, err
	}
	return DepthToPointCloud(rgb, depth, rc.cfg.Intrinsics, rc.cfg.getDepthScaleMM(), 1)
}

func (rc *realsenseCamera) Properties(ctx context.Context) (camera.Properties, error) {
	return camera.Properties{
		SupportsPCD:     rc.cfg.Intrinsics != nil,
		ImageType:       camera.ColorStream,
		IntrinsicParams: rc.cfg.Intrinsics,
	}, nil
}
