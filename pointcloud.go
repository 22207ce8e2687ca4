package realsensecontrol

import (
	"fmt"
	"image/color"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage/transform"
)

// DepthToPointCloud deprojects every non-zero depth sample through the pinhole
// model and colours it from the aligned color buffer. Positions are in
// millimetres; depthScaleMM converts raw depth units to millimetres.
func DepthToPointCloud(rgb, depth *ImageBuffer, intr *transform.PinholeCameraIntrinsics, depthScaleMM float64, pixelStep int) (pointcloud.PointCloud, error) {
	if intr == nil {
		return nil, fmt.Errorf("need intrinsics to make a point cloud")
	}
	if intr.Fx == 0 || intr.Fy == 0 {
		return nil, fmt.Errorf("intrinsics need non-zero focal lengths")
	}
	if rgb.Width != depth.Width || rgb.Height != depth.Height {
		return nil, fmt.Errorf("color %dx%d and depth %dx%d must have the same dimensions",
			rgb.Width, rgb.Height, depth.Width, depth.Height)
	}
	if depthScaleMM <= 0 {
		depthScaleMM = 1
	}
	if pixelStep <= 0 {
		pixelStep = 1
	}

	pc := pointcloud.New()
	for y := 0; y < depth.Height; y += pixelStep {
		for x := 0; x < depth.Width; x += pixelStep {
			raw := depth.Uint16At(x, y)
			if raw == 0 {
				continue
			}
			z := float64(raw) * depthScaleMM
			x3d := (float64(x) - intr.Ppx) * z / intr.Fx
			y3d := (float64(y) - intr.Ppy) * z / intr.Fy

			r, g, b := rgb.RGBAt(x, y)
			err := pc.Set(
				r3.Vector{X: x3d, Y: y3d, Z: z},
				pointcloud.NewColoredData(color.NRGBA{R: r, G: g, B: b, A: 255}),
			)
			if err != nil {
				return nil, err
			}
		}
	}
	return pc, nil
}
