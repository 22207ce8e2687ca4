//go:build realsense

package librealsense

/*
#cgo linux darwin LDFLAGS: -L/usr/local/lib/ -lrealsense2
#cgo CPPFLAGS: -I/usr/local/include
#include <stdlib.h>
#include <librealsense2/rs.h>
#include <librealsense2/h/rs_pipeline.h>
#include <librealsense2/h/rs_config.h>
#include <librealsense2/h/rs_frame.h>
#include <librealsense2/h/rs_record_playback.h>
*/
import "C"

import (
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"realsensecontrol/sdk"
)

// BackendName is the name the librealsense backend registers under.
const BackendName = "librealsense"

func init() {
	sdk.RegisterBackend(BackendName, func() (sdk.Backend, error) {
		return NewBackend()
	})
}

// Backend owns a librealsense context.
type Backend struct {
	mu  sync.Mutex
	ctx *C.rs2_context
}

// NewBackend creates a librealsense context.
func NewBackend() (*Backend, error) {
	var errc *C.rs2_error
	ctx := C.rs2_create_context(C.RS2_API_VERSION, &errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}
	return &Backend{ctx: ctx}, nil
}

// Name implements sdk.Backend.
func (b *Backend) Name() string {
	return BackendName
}

// Close deletes the librealsense context.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		C.rs2_delete_context(b.ctx)
		b.ctx = nil
	}
	return nil
}

// DeviceCount returns the number of connected devices.
func (b *Backend) DeviceCount() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errc *C.rs2_error
	list := C.rs2_query_devices(b.ctx, &errc)
	if errc != nil {
		return 0, errorFrom(errc)
	}
	defer C.rs2_delete_device_list(list)
	n := C.rs2_get_device_count(list, &errc)
	if errc != nil {
		return 0, errorFrom(errc)
	}
	return int(n), nil
}

// NewConfig implements sdk.Backend.
func (b *Backend) NewConfig() sdk.Config {
	return &config{}
}

// NewPipeline implements sdk.Backend.
func (b *Backend) NewPipeline() sdk.Pipeline {
	return &pipeline{b: b}
}

// config records requests and applies them to a fresh rs2_config at Start, so a
// config value never holds native memory between calls.
type config struct {
	streams    []sdk.StreamRequest
	inputFile  string
	recordFile string
}

func (c *config) EnableStream(req sdk.StreamRequest) error {
	if _, ok := toStream(req.Stream); !ok {
		return errors.Wrapf(sdk.ErrInvalidArgument, "cannot enable %s", req.Stream)
	}
	if _, ok := toFormat(req.Format); !ok {
		return errors.Wrapf(sdk.ErrUnsupportedStream, "%s", req)
	}
	for i, s := range c.streams {
		if s.Stream == req.Stream {
			c.streams[i] = req
			return nil
		}
	}
	c.streams = append(c.streams, req)
	return nil
}

func (c *config) EnableDeviceFromFile(path string) error {
	if path == "" {
		return errors.Wrap(sdk.ErrInvalidArgument, "empty playback file path")
	}
	c.inputFile = path
	return nil
}

func (c *config) EnableRecordToFile(path string) error {
	if path == "" {
		return errors.Wrap(sdk.ErrInvalidArgument, "empty record file path")
	}
	c.recordFile = path
	return nil
}

func (c *config) native() (*C.rs2_config, error) {
	var errc *C.rs2_error
	conf := C.rs2_create_config(&errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}
	fail := func(errc *C.rs2_error) (*C.rs2_config, error) {
		C.rs2_delete_config(conf)
		return nil, errorFrom(errc)
	}

	if c.inputFile != "" {
		cs := C.CString(c.inputFile)
		C.rs2_config_enable_device_from_file(conf, cs, &errc)
		C.free(unsafe.Pointer(cs))
		if errc != nil {
			return fail(errc)
		}
	}
	for _, req := range c.streams {
		st, _ := toStream(req.Stream)
		format, _ := toFormat(req.Format)
		C.rs2_config_enable_stream(conf, st, -1, C.int(req.Width), C.int(req.Height), format, C.int(req.FPS), &errc)
		if errc != nil {
			return fail(errc)
		}
	}
	if c.recordFile != "" {
		cs := C.CString(c.recordFile)
		C.rs2_config_enable_record_to_file(conf, cs, &errc)
		C.free(unsafe.Pointer(cs))
		if errc != nil {
			return fail(errc)
		}
	}
	return conf, nil
}

type pipeline struct {
	b       *Backend
	p       *C.rs2_pipeline
	conf    *C.rs2_config
	profile *C.rs2_pipeline_profile
	dev     *device
	closed  bool
}

func (p *pipeline) Start(cfg sdk.Config) (sdk.Profile, error) {
	c, ok := cfg.(*config)
	if !ok {
		return nil, errors.Wrapf(sdk.ErrInvalidArgument, "config %T does not belong to the %s backend", cfg, BackendName)
	}
	if p.closed {
		return nil, sdk.ErrClosed
	}
	if p.profile != nil {
		return nil, sdk.ErrAlreadyStarted
	}
	if c.inputFile == "" {
		n, err := p.b.DeviceCount()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, sdk.ErrNoDevice
		}
	}

	var errc *C.rs2_error
	if p.p == nil {
		p.b.mu.Lock()
		p.p = C.rs2_create_pipeline(p.b.ctx, &errc)
		p.b.mu.Unlock()
		if errc != nil {
			return nil, errorFrom(errc)
		}
	}

	conf, err := c.native()
	if err != nil {
		return nil, err
	}
	prof := C.rs2_pipeline_start_with_config(p.p, conf, &errc)
	if errc != nil {
		C.rs2_delete_config(conf)
		return nil, errorFrom(errc)
	}
	p.conf = conf
	p.profile = prof

	rsDev := C.rs2_pipeline_profile_get_device(prof, &errc)
	if errc != nil {
		return nil, multierr.Combine(errorFrom(errc), p.Stop())
	}
	p.dev = &device{d: rsDev}
	return &profile{dev: p.dev, streams: streamsOf(prof)}, nil
}

func (p *pipeline) Stop() error {
	if p.profile == nil {
		return sdk.ErrNotStarted
	}
	var errc *C.rs2_error
	C.rs2_pipeline_stop(p.p, &errc)
	err := errorFrom(errc)

	if p.dev != nil {
		// profiles handed out earlier keep the *device; clear it so they fail cleanly
		C.rs2_delete_device(p.dev.d)
		p.dev.d = nil
		p.dev = nil
	}
	C.rs2_delete_pipeline_profile(p.profile)
	C.rs2_delete_config(p.conf)
	p.profile = nil
	p.conf = nil
	return err
}

// Close stops the pipeline if needed and deletes the native pipeline.
func (p *pipeline) Close() error {
	if p.closed {
		return nil
	}
	var err error
	if p.profile != nil {
		err = p.Stop()
	}
	if p.p != nil {
		C.rs2_delete_pipeline(p.p)
		p.p = nil
	}
	p.closed = true
	return err
}

func (p *pipeline) WaitForFrames(timeout time.Duration) (sdk.FrameSet, error) {
	if p.profile == nil {
		return nil, sdk.ErrNotStarted
	}
	var errc *C.rs2_error
	composite := C.rs2_pipeline_wait_for_frames(p.p, C.uint(timeout.Milliseconds()), &errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}
	defer C.rs2_release_frame(composite)

	count := C.rs2_embedded_frames_count(composite, &errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}
	set := &frameSet{}
	for i := 0; i < int(count); i++ {
		f := C.rs2_extract_frame(composite, C.int(i), &errc)
		if errc != nil {
			return nil, errorFrom(errc)
		}
		fr, err := copyFrame(f)
		C.rs2_release_frame(f)
		if err != nil {
			return nil, err
		}
		set.frames = append(set.frames, fr)
	}
	return set, nil
}

func copyFrame(f *C.rs2_frame) (*frame, error) {
	var errc *C.rs2_error
	sp := C.rs2_get_frame_stream_profile(f, &errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}
	var (
		st                    C.rs2_stream
		fm                    C.rs2_format
		index, uid, framerate C.int
	)
	C.rs2_get_stream_profile_data(sp, &st, &fm, &index, &uid, &framerate, &errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}

	out := &frame{stream: fromStream(st), format: fromFormat(fm)}
	out.width = int(C.rs2_get_frame_width(f, &errc))
	if errc != nil {
		return nil, errorFrom(errc)
	}
	out.height = int(C.rs2_get_frame_height(f, &errc))
	if errc != nil {
		return nil, errorFrom(errc)
	}
	out.stride = int(C.rs2_get_frame_stride_in_bytes(f, &errc))
	if errc != nil {
		return nil, errorFrom(errc)
	}
	out.number = uint64(C.rs2_get_frame_number(f, &errc))
	if errc != nil {
		return nil, errorFrom(errc)
	}
	ms := float64(C.rs2_get_frame_timestamp(f, &errc))
	if errc != nil {
		return nil, errorFrom(errc)
	}
	out.ts = time.Unix(0, int64(ms*float64(time.Millisecond)))

	data := C.rs2_get_frame_data(f, &errc)
	if errc != nil {
		return nil, errorFrom(errc)
	}
	out.data = C.GoBytes(data, C.int(out.stride*out.height))
	return out, nil
}

func streamsOf(prof *C.rs2_pipeline_profile) []sdk.StreamRequest {
	var errc *C.rs2_error
	list := C.rs2_pipeline_profile_get_streams(prof, &errc)
	if errc != nil {
		C.rs2_free_error(errc)
		return nil
	}
	defer C.rs2_delete_stream_profiles_list(list)

	n := C.rs2_get_stream_profiles_count(list, &errc)
	if errc != nil {
		C.rs2_free_error(errc)
		return nil
	}
	var out []sdk.StreamRequest
	for i := 0; i < int(n); i++ {
		sp := C.rs2_get_stream_profile(list, C.int(i), &errc)
		if errc != nil {
			C.rs2_free_error(errc)
			return out
		}
		var (
			st                    C.rs2_stream
			fm                    C.rs2_format
			index, uid, framerate C.int
			width, height         C.int
		)
		C.rs2_get_stream_profile_data(sp, &st, &fm, &index, &uid, &framerate, &errc)
		if errc != nil {
			C.rs2_free_error(errc)
			errc = nil
			continue
		}
		C.rs2_get_video_stream_resolution(sp, &width, &height, &errc)
		if errc != nil {
			// motion streams have no resolution
			C.rs2_free_error(errc)
			errc = nil
			continue
		}
		out = append(out, sdk.StreamRequest{
			Stream: fromStream(st),
			Width:  int(width),
			Height: int(height),
			Format: fromFormat(fm),
			FPS:    int(framerate),
		})
	}
	return out
}

type profile struct {
	dev     *device
	streams []sdk.StreamRequest
}

func (p *profile) Device() (sdk.Device, error) {
	if p.dev == nil {
		return nil, sdk.ErrNotStarted
	}
	return p.dev, nil
}

func (p *profile) Streams() []sdk.StreamRequest {
	return append([]sdk.StreamRequest(nil), p.streams...)
}

type device struct {
	d *C.rs2_device
}

func (d *device) info(key C.rs2_camera_info) string {
	if d.d == nil {
		return ""
	}
	var errc *C.rs2_error
	if C.rs2_supports_device_info(d.d, key, &errc) == 0 || errc != nil {
		if errc != nil {
			C.rs2_free_error(errc)
		}
		return ""
	}
	s := C.rs2_get_device_info(d.d, key, &errc)
	if errc != nil {
		C.rs2_free_error(errc)
		return ""
	}
	return C.GoString(s)
}

func (d *device) Name() string   { return d.info(C.RS2_CAMERA_INFO_NAME) }
func (d *device) Serial() string { return d.info(C.RS2_CAMERA_INFO_SERIAL_NUMBER) }

func (d *device) AsPlayback() (sdk.Playback, bool) {
	if d.d == nil {
		return nil, false
	}
	var errc *C.rs2_error
	ok := C.rs2_is_device_extendable_to(d.d, C.RS2_EXTENSION_PLAYBACK, &errc)
	if errc != nil {
		C.rs2_free_error(errc)
		return nil, false
	}
	if ok == 0 {
		return nil, false
	}
	return &playback{dev: d}, true
}

type playback struct {
	dev *device
}

func (pb *playback) FilePath() string {
	if pb.dev.d == nil {
		return ""
	}
	var errc *C.rs2_error
	s := C.rs2_playback_file_name(pb.dev.d, &errc)
	if errc != nil {
		C.rs2_free_error(errc)
		return ""
	}
	return C.GoString(s)
}

func (pb *playback) SetRealTime(realTime bool) error {
	v := C.int(0)
	if realTime {
		v = 1
	}
	if pb.dev.d == nil {
		return sdk.ErrNotStarted
	}
	var errc *C.rs2_error
	C.rs2_playback_device_set_real_time(pb.dev.d, v, &errc)
	return errorFrom(errc)
}

func (pb *playback) RealTime() (bool, error) {
	if pb.dev.d == nil {
		return false, sdk.ErrNotStarted
	}
	var errc *C.rs2_error
	v := C.rs2_playback_device_is_real_time(pb.dev.d, &errc)
	if errc != nil {
		return false, errorFrom(errc)
	}
	return v != 0, nil
}

type frameSet struct {
	frames []sdk.Frame
}

func (fs *frameSet) Frames() []sdk.Frame { return fs.frames }
func (fs *frameSet) Release()            { fs.frames = nil }

type frame struct {
	stream        sdk.Stream
	format        sdk.Format
	width, height int
	stride        int
	number        uint64
	ts            time.Time
	data          []byte
}

func (f *frame) Stream() sdk.Stream   { return f.stream }
func (f *frame) Format() sdk.Format   { return f.format }
func (f *frame) Width() int           { return f.width }
func (f *frame) Height() int          { return f.height }
func (f *frame) Stride() int          { return f.stride }
func (f *frame) Number() uint64       { return f.number }
func (f *frame) Timestamp() time.Time { return f.ts }
func (f *frame) Data() []byte         { return f.data }

func toStream(s sdk.Stream) (C.rs2_stream, bool) {
	switch s {
	case sdk.StreamDepth:
		return C.RS2_STREAM_DEPTH, true
	case sdk.StreamColor:
		return C.RS2_STREAM_COLOR, true
	default:
		return 0, false
	}
}

func fromStream(s C.rs2_stream) sdk.Stream {
	switch s {
	case C.RS2_STREAM_DEPTH:
		return sdk.StreamDepth
	case C.RS2_STREAM_COLOR:
		return sdk.StreamColor
	default:
		return sdk.StreamAny
	}
}

func toFormat(f sdk.Format) (C.rs2_format, bool) {
	switch f {
	case sdk.FormatAny:
		return C.RS2_FORMAT_ANY, true
	case sdk.FormatZ16:
		return C.RS2_FORMAT_Z16, true
	case sdk.FormatBGR8:
		return C.RS2_FORMAT_BGR8, true
	case sdk.FormatRGB8:
		return C.RS2_FORMAT_RGB8, true
	default:
		return 0, false
	}
}

func fromFormat(f C.rs2_format) sdk.Format {
	switch f {
	case C.RS2_FORMAT_Z16:
		return sdk.FormatZ16
	case C.RS2_FORMAT_BGR8:
		return sdk.FormatBGR8
	case C.RS2_FORMAT_RGB8:
		return sdk.FormatRGB8
	default:
		return sdk.FormatAny
	}
}

// errorFrom converts and frees a librealsense error, wrapping the matching sdk
// sentinel where the exception type or message identifies one.
func errorFrom(errc *C.rs2_error) error {
	if errc == nil {
		return nil
	}
	defer C.rs2_free_error(errc)

	msg := C.GoString(C.rs2_get_error_message(errc))
	switch C.rs2_get_librealsense_exception_type(errc) {
	case C.RS2_EXCEPTION_TYPE_CAMERA_DISCONNECTED:
		return errors.Wrap(sdk.ErrDisconnected, msg)
	case C.RS2_EXCEPTION_TYPE_BACKEND, C.RS2_EXCEPTION_TYPE_DEVICE_IN_RECOVERY_MODE:
		return errors.Wrap(sdk.ErrDeviceBusy, msg)
	case C.RS2_EXCEPTION_TYPE_INVALID_VALUE:
		return errors.Wrap(sdk.ErrInvalidArgument, msg)
	case C.RS2_EXCEPTION_TYPE_IO:
		return errors.Wrap(sdk.ErrFileNotFound, msg)
	}
	switch {
	case strings.Contains(msg, "didn't arrive"):
		return errors.Wrap(sdk.ErrTimeout, msg)
	case strings.Contains(msg, "resolve"):
		return errors.Wrap(sdk.ErrUnsupportedStream, msg)
	case strings.Contains(msg, "No device connected"):
		return errors.Wrap(sdk.ErrNoDevice, msg)
	case strings.Contains(msg, "start()"), strings.Contains(msg, "already started"):
		return errors.Wrap(sdk.ErrAlreadyStarted, msg)
	}
	return errors.New(msg)
}
