package sim

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"realsensecontrol/sdk"
)

func enableDefault(t *testing.T, cfg sdk.Config) {
	t.Helper()
	for _, req := range defaultStreams {
		test.That(t, cfg.EnableStream(req), test.ShouldBeNil)
	}
}

func TestLiveStartStop(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	enableDefault(t, cfg)

	p := b.NewPipeline()
	prof, err := p.Start(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, prof.Streams(), test.ShouldHaveLength, 2)

	dev, err := prof.Device()
	test.That(t, err, test.ShouldBeNil)
	_, isPlayback := dev.AsPlayback()
	test.That(t, isPlayback, test.ShouldBeFalse)

	_, err = p.Start(cfg)
	test.That(t, errors.Is(err, sdk.ErrAlreadyStarted), test.ShouldBeTrue)

	fs, err := p.WaitForFrames(time.Second)
	test.That(t, err, test.ShouldBeNil)
	depth, ok := sdk.FindFrame(fs, sdk.StreamDepth)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, depth.Width(), test.ShouldEqual, 640)
	test.That(t, len(depth.Data()), test.ShouldEqual, 640*480*2)
	fs.Release()
	test.That(t, fs.Frames(), test.ShouldBeEmpty)

	test.That(t, p.Stop(), test.ShouldBeNil)
	test.That(t, errors.Is(p.Stop(), sdk.ErrNotStarted), test.ShouldBeTrue)

	_, err = p.WaitForFrames(time.Second)
	test.That(t, errors.Is(err, sdk.ErrNotStarted), test.ShouldBeTrue)
}

func TestCloseReleasesDevice(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	enableDefault(t, cfg)

	first := b.NewPipeline()
	_, err := first.Start(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.OpenPipelines(), test.ShouldEqual, 1)

	test.That(t, first.Close(), test.ShouldBeNil)
	test.That(t, first.Close(), test.ShouldBeNil)
	test.That(t, b.OpenPipelines(), test.ShouldEqual, 0)
	_, err = first.Start(cfg)
	test.That(t, errors.Is(err, sdk.ErrClosed), test.ShouldBeTrue)

	second := b.NewPipeline()
	_, err = second.Start(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.Close(), test.ShouldBeNil)
}

func TestNoDevice(t *testing.T) {
	b := New(WithoutDevice())
	cfg := b.NewConfig()
	enableDefault(t, cfg)
	_, err := b.NewPipeline().Start(cfg)
	test.That(t, errors.Is(err, sdk.ErrNoDevice), test.ShouldBeTrue)
}

func TestDeviceBusy(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	enableDefault(t, cfg)

	first := b.NewPipeline()
	_, err := first.Start(cfg)
	test.That(t, err, test.ShouldBeNil)

	second := b.NewPipeline()
	_, err = second.Start(cfg)
	test.That(t, errors.Is(err, sdk.ErrDeviceBusy), test.ShouldBeTrue)

	test.That(t, first.Stop(), test.ShouldBeNil)
	_, err = second.Start(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.Stop(), test.ShouldBeNil)
}

func TestUnsupportedMode(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	test.That(t, cfg.EnableStream(sdk.StreamRequest{
		Stream: sdk.StreamDepth, Width: 641, Height: 480, Format: sdk.FormatZ16, FPS: 30,
	}), test.ShouldBeNil)
	_, err := b.NewPipeline().Start(cfg)
	test.That(t, errors.Is(err, sdk.ErrUnsupportedStream), test.ShouldBeTrue)

	err = cfg.EnableStream(sdk.StreamRequest{Stream: sdk.StreamColor, Width: 640, Height: 480, Format: sdk.FormatZ16, FPS: 30})
	test.That(t, errors.Is(err, sdk.ErrUnsupportedStream), test.ShouldBeTrue)
}

func TestDisconnect(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	enableDefault(t, cfg)
	p := b.NewPipeline()
	_, err := p.Start(cfg)
	test.That(t, err, test.ShouldBeNil)

	b.SetDevicePresent(false)
	_, err = p.WaitForFrames(time.Second)
	test.That(t, errors.Is(err, sdk.ErrDisconnected), test.ShouldBeTrue)
	test.That(t, p.Stop(), test.ShouldBeNil)
}

func TestTimeoutShorterThanFramePeriod(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	test.That(t, cfg.EnableStream(sdk.StreamRequest{
		Stream: sdk.StreamDepth, Width: 640, Height: 480, Format: sdk.FormatZ16, FPS: 6,
	}), test.ShouldBeNil)
	p := b.NewPipeline()
	_, err := p.Start(cfg)
	test.That(t, err, test.ShouldBeNil)
	defer p.Stop()

	fs, err := p.WaitForFrames(time.Second)
	test.That(t, err, test.ShouldBeNil)
	fs.Release()

	_, err = p.WaitForFrames(time.Millisecond)
	test.That(t, errors.Is(err, sdk.ErrTimeout), test.ShouldBeTrue)
}

func TestRecordThenPlayback(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	enableDefault(t, cfg)
	test.That(t, cfg.EnableRecordToFile("out.bag"), test.ShouldBeNil)

	p := b.NewPipeline()
	_, err := p.Start(cfg)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		fs, err := p.WaitForFrames(time.Second)
		test.That(t, err, test.ShouldBeNil)
		fs.Release()
	}
	_, ok := b.Recording("out.bag")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, p.Stop(), test.ShouldBeNil)

	rec, ok := b.Recording("out.bag")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, rec.Frames, test.ShouldEqual, 3)
	test.That(t, rec.Streams, test.ShouldResemble, defaultStreams)

	b.SetDevicePresent(false)
	playCfg := b.NewConfig()
	test.That(t, playCfg.EnableDeviceFromFile("out.bag"), test.ShouldBeNil)
	enableDefault(t, playCfg)
	prof, err := p.Start(playCfg)
	test.That(t, err, test.ShouldBeNil)
	dev, err := prof.Device()
	test.That(t, err, test.ShouldBeNil)
	pb, ok := dev.AsPlayback()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pb.FilePath(), test.ShouldEqual, "out.bag")
	test.That(t, pb.SetRealTime(false), test.ShouldBeNil)

	// playback loops over the recorded frames
	var numbers []uint64
	for i := 0; i < 4; i++ {
		fs, err := p.WaitForFrames(time.Second)
		test.That(t, err, test.ShouldBeNil)
		f, ok := sdk.FindFrame(fs, sdk.StreamColor)
		test.That(t, ok, test.ShouldBeTrue)
		numbers = append(numbers, f.Number())
		fs.Release()
	}
	test.That(t, numbers, test.ShouldResemble, []uint64{0, 1, 2, 0})
	test.That(t, p.Stop(), test.ShouldBeNil)
}

func TestPlaybackMissingFile(t *testing.T) {
	b := New()
	cfg := b.NewConfig()
	test.That(t, cfg.EnableDeviceFromFile("missing.bag"), test.ShouldBeNil)
	_, err := b.NewPipeline().Start(cfg)
	test.That(t, errors.Is(err, sdk.ErrFileNotFound), test.ShouldBeTrue)
}

func TestSynthesizedPixels(t *testing.T) {
	req := sdk.StreamRequest{Stream: sdk.StreamColor, Width: 4, Height: 2, Format: sdk.FormatBGR8, FPS: 30}
	f := synthesize(req, 7, time.Time{})
	r, g, b := ColorAt(3, 1, 7)
	off := 1*f.Stride() + 3*3
	test.That(t, f.Data()[off:off+3], test.ShouldResemble, []byte{b, g, r})
}
