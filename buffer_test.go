package realsensecontrol

import (
	"encoding/binary"
	"testing"
	"time"

	"go.viam.com/rdk/rimage"
	"go.viam.com/test"

	"realsensecontrol/sdk"
)

type testFrame struct {
	stream sdk.Stream
	format sdk.Format
	w, h   int
	stride int
	data   []byte
}

func (f *testFrame) Stream() sdk.Stream   { return f.stream }
func (f *testFrame) Format() sdk.Format   { return f.format }
func (f *testFrame) Width() int           { return f.w }
func (f *testFrame) Height() int          { return f.h }
func (f *testFrame) Stride() int          { return f.stride }
func (f *testFrame) Number() uint64       { return 9 }
func (f *testFrame) Timestamp() time.Time { return time.Time{} }
func (f *testFrame) Data() []byte         { return f.data }

func TestToImageBufferStride(t *testing.T) {
	// 3x2 depth frame with 2 bytes of row padding
	f := &testFrame{stream: sdk.StreamDepth, format: sdk.FormatZ16, w: 3, h: 2, stride: 8, data: make([]byte, 16)}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			binary.LittleEndian.PutUint16(f.data[y*8+x*2:], uint16(100*y+x))
		}
		f.data[y*8+6], f.data[y*8+7] = 0xff, 0xff
	}

	buf, err := ToImageBuffer(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Shape(), test.ShouldResemble, []int{2, 3})
	test.That(t, buf.Pix, test.ShouldHaveLength, 12)
	test.That(t, buf.Number, test.ShouldEqual, uint64(9))
	test.That(t, buf.Uint16At(2, 1), test.ShouldEqual, uint16(102))
	test.That(t, buf.Uint16At(0, 1), test.ShouldEqual, uint16(100))

	dm, err := buf.DepthMap()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 3)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, rimage.Depth(102))

	_, err = buf.Image()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToImageBufferColor(t *testing.T) {
	f := &testFrame{stream: sdk.StreamColor, format: sdk.FormatBGR8, w: 2, h: 1, data: []byte{1, 2, 3, 4, 5, 6}}
	buf, err := ToImageBuffer(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Shape(), test.ShouldResemble, []int{1, 2, 3})

	r, g, b := buf.RGBAt(1, 0)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{6, 5, 4})

	img, err := buf.Image()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.GetXY(0, 0), test.ShouldResemble, rimage.NewColor(3, 2, 1))

	_, err = buf.DepthMap()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToImageBufferShortData(t *testing.T) {
	f := &testFrame{stream: sdk.StreamColor, format: sdk.FormatBGR8, w: 2, h: 2, data: make([]byte, 11)}
	_, err := ToImageBuffer(f)
	test.That(t, err, test.ShouldNotBeNil)

	f = &testFrame{stream: sdk.StreamColor, format: sdk.FormatAny, w: 2, h: 2, data: make([]byte, 12)}
	_, err = ToImageBuffer(f)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ToImageBuffer(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEnableStreams(t *testing.T) {
	cfg := &recordingConfig{}
	test.That(t, EnableStreams(cfg, 848, 480, 15), test.ShouldBeNil)
	test.That(t, cfg.reqs, test.ShouldResemble, []sdk.StreamRequest{
		{Stream: sdk.StreamDepth, Width: 848, Height: 480, Format: sdk.FormatZ16, FPS: 15},
		{Stream: sdk.StreamColor, Width: 848, Height: 480, Format: sdk.FormatBGR8, FPS: 15},
	})
}

type recordingConfig struct {
	reqs []sdk.StreamRequest
}

func (c *recordingConfig) EnableStream(req sdk.StreamRequest) error {
	c.reqs = append(c.reqs, req)
	return nil
}
func (c *recordingConfig) EnableDeviceFromFile(string) error { return nil }
func (c *recordingConfig) EnableRecordToFile(string) error   { return nil }
