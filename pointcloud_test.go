package realsensecontrol

import (
	"encoding/binary"
	"testing"

	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/test"

	"realsensecontrol/sdk"
)

func TestDepthToPointCloud(t *testing.T) {
	depth := &ImageBuffer{Width: 2, Height: 2, Channels: 1, Format: sdk.FormatZ16, Pix: make([]byte, 8)}
	binary.LittleEndian.PutUint16(depth.Pix[0:], 1000) // (0,0)
	binary.LittleEndian.PutUint16(depth.Pix[6:], 2000) // (1,1)
	rgb := &ImageBuffer{Width: 2, Height: 2, Channels: 3, Format: sdk.FormatBGR8, Pix: make([]byte, 12)}
	rgb.Pix[9], rgb.Pix[10], rgb.Pix[11] = 10, 20, 30 // (1,1) as BGR

	intr := &transform.PinholeCameraIntrinsics{Width: 2, Height: 2, Fx: 100, Fy: 200, Ppx: 1, Ppy: 0}
	pc, err := DepthToPointCloud(rgb, depth, intr, 1, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)

	d, ok := pc.At(-10, 0, 1000)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.HasColor(), test.ShouldBeTrue)

	d, ok = pc.At(0, 10, 2000)
	test.That(t, ok, test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{30, 20, 10})
}

func TestDepthToPointCloudErrors(t *testing.T) {
	depth := &ImageBuffer{Width: 2, Height: 2, Channels: 1, Format: sdk.FormatZ16, Pix: make([]byte, 8)}
	rgb := &ImageBuffer{Width: 1, Height: 2, Channels: 3, Format: sdk.FormatBGR8, Pix: make([]byte, 6)}
	intr := &transform.PinholeCameraIntrinsics{Fx: 1, Fy: 1}

	_, err := DepthToPointCloud(rgb, depth, nil, 1, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = DepthToPointCloud(rgb, depth, &transform.PinholeCameraIntrinsics{}, 1, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = DepthToPointCloud(rgb, depth, intr, 1, 1)
	test.That(t, err, test.ShouldNotBeNil)
}
