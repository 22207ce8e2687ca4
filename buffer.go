package realsensecontrol

import (
	"encoding/binary"
	"image"

	"github.com/pkg/errors"
	"go.viam.com/rdk/rimage"

	"realsensecontrol/sdk"
)

// ImageBuffer is a dense row-major copy of one frame's pixels. Depth buffers hold
// one little-endian uint16 per pixel, color buffers three bytes per pixel in the
// order given by Format.
type ImageBuffer struct {
	Width    int
	Height   int
	Channels int
	Format   sdk.Format
	Number   uint64
	Pix      []byte
}

// ToImageBuffer copies a frame into a packed buffer. The frame may be released
// afterwards.
func ToImageBuffer(f sdk.Frame) (*ImageBuffer, error) {
	if f == nil {
		return nil, errors.New("nil frame")
	}
	bpp := f.Format().BytesPerPixel()
	if bpp == 0 {
		return nil, errors.Errorf("unsupported pixel format %s", f.Format())
	}
	w, h := f.Width(), f.Height()
	rowLen := w * bpp
	stride := f.Stride()
	if stride == 0 {
		stride = rowLen
	}
	data := f.Data()
	if w <= 0 || h <= 0 || stride < rowLen || len(data) < stride*(h-1)+rowLen {
		return nil, errors.Errorf("%s frame %dx%d stride %d has %d bytes", f.Stream(), w, h, stride, len(data))
	}

	buf := &ImageBuffer{
		Width:    w,
		Height:   h,
		Channels: f.Format().Channels(),
		Format:   f.Format(),
		Number:   f.Number(),
		Pix:      make([]byte, rowLen*h),
	}
	if stride == rowLen {
		copy(buf.Pix, data[:rowLen*h])
		return buf, nil
	}
	for y := 0; y < h; y++ {
		copy(buf.Pix[y*rowLen:(y+1)*rowLen], data[y*stride:y*stride+rowLen])
	}
	return buf, nil
}

// Shape returns (rows, cols) for single-channel buffers and (rows, cols,
// channels) otherwise.
func (b *ImageBuffer) Shape() []int {
	if b.Channels == 1 {
		return []int{b.Height, b.Width}
	}
	return []int{b.Height, b.Width, b.Channels}
}

// Bounds returns the buffer's rectangle.
func (b *ImageBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Uint16At returns the depth sample at (x, y) of a Z16 buffer.
func (b *ImageBuffer) Uint16At(x, y int) uint16 {
	i := (y*b.Width + x) * 2
	return binary.LittleEndian.Uint16(b.Pix[i : i+2])
}

// RGBAt returns the color at (x, y) of a BGR8 or RGB8 buffer.
func (b *ImageBuffer) RGBAt(x, y int) (r, g, bl uint8) {
	i := (y*b.Width + x) * 3
	px := b.Pix[i : i+3]
	if b.Format == sdk.FormatBGR8 {
		return px[2], px[1], px[0]
	}
	return px[0], px[1], px[2]
}

// DepthMap converts a Z16 buffer.
func (b *ImageBuffer) DepthMap() (*rimage.DepthMap, error) {
	if b.Format != sdk.FormatZ16 {
		return nil, errors.Errorf("cannot make a depth map from %s", b.Format)
	}
	dm := rimage.NewEmptyDepthMap(b.Width, b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			dm.Set(x, y, rimage.Depth(b.Uint16At(x, y)))
		}
	}
	return dm, nil
}

// Image converts a color buffer.
func (b *ImageBuffer) Image() (*rimage.Image, error) {
	if b.Format != sdk.FormatBGR8 && b.Format != sdk.FormatRGB8 {
		return nil, errors.Errorf("cannot make a color image from %s", b.Format)
	}
	img := rimage.NewImage(b.Width, b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			r, g, bl := b.RGBAt(x, y)
			img.SetXY(x, y, rimage.NewColor(r, g, bl))
		}
	}
	return img, nil
}
