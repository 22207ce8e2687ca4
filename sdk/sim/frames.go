package sim

import (
	"encoding/binary"
	"time"

	"realsensecontrol/sdk"
)

type frameSet struct {
	frames   []sdk.Frame
	released bool
}

func (fs *frameSet) Frames() []sdk.Frame {
	if fs.released {
		return nil
	}
	return fs.frames
}

func (fs *frameSet) Release() {
	fs.released = true
	fs.frames = nil
}

type frame struct {
	req    sdk.StreamRequest
	number uint64
	ts     time.Time
	data   []byte
}

func (f *frame) Stream() sdk.Stream   { return f.req.Stream }
func (f *frame) Format() sdk.Format   { return f.req.Format }
func (f *frame) Width() int           { return f.req.Width }
func (f *frame) Height() int          { return f.req.Height }
func (f *frame) Stride() int          { return f.req.Width * f.req.Format.BytesPerPixel() }
func (f *frame) Number() uint64       { return f.number }
func (f *frame) Timestamp() time.Time { return f.ts }
func (f *frame) Data() []byte         { return f.data }

// DepthAt is the synthetic depth in millimetres the simulator renders at (x, y)
// of frame n.
func DepthAt(x, y int, n uint64) uint16 {
	return uint16(500 + (x+y+int(n%1000))%1000)
}

// ColorAt is the synthetic color the simulator renders at (x, y) of frame n.
func ColorAt(x, y int, n uint64) (r, g, b uint8) {
	return uint8(n), uint8(y), uint8(x)
}

func synthesize(req sdk.StreamRequest, n uint64, ts time.Time) *frame {
	f := &frame{req: req, number: n, ts: ts}
	bpp := req.Format.BytesPerPixel()
	f.data = make([]byte, req.Width*req.Height*bpp)
	for y := 0; y < req.Height; y++ {
		row := f.data[y*req.Width*bpp:]
		for x := 0; x < req.Width; x++ {
			px := row[x*bpp : (x+1)*bpp]
			switch req.Format {
			case sdk.FormatZ16:
				binary.LittleEndian.PutUint16(px, DepthAt(x, y, n))
			case sdk.FormatBGR8:
				r, g, b := ColorAt(x, y, n)
				px[0], px[1], px[2] = b, g, r
			case sdk.FormatRGB8:
				r, g, b := ColorAt(x, y, n)
				px[0], px[1], px[2] = r, g, b
			}
		}
	}
	return f
}
