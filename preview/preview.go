// Package preview shows camera frames in an OpenCV window.
package preview

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"go.viam.com/rdk/logging"

	"realsensecontrol"
	"realsensecontrol/sdk"
)

// DefaultWindowName is the title of the preview window.
const DefaultWindowName = "Image stream"

// defaultMaxDepthMM is the depth mapped to the top of the colormap.
const defaultMaxDepthMM = 4000

// ToMat converts a buffer to a Mat. Color buffers come out in BGR order.
func ToMat(buf *realsensecontrol.ImageBuffer) (gocv.Mat, error) {
	switch buf.Format {
	case sdk.FormatZ16:
		return gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV16UC1, buf.Pix)
	case sdk.FormatBGR8:
		return gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, buf.Pix)
	case sdk.FormatRGB8:
		rgb, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, buf.Pix)
		if err != nil {
			return gocv.NewMat(), err
		}
		defer rgb.Close()
		bgr := gocv.NewMat()
		gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)
		return bgr, nil
	default:
		return gocv.NewMat(), errors.Errorf("no Mat type for %s", buf.Format)
	}
}

// ColorizeDepth maps a 16-bit depth Mat onto a jet colormap, saturating at
// maxDepthMM.
func ColorizeDepth(depth gocv.Mat, maxDepthMM float64) gocv.Mat {
	if maxDepthMM <= 0 {
		maxDepthMM = defaultMaxDepthMM
	}
	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.ConvertScaleAbs(depth, &scaled, 255/maxDepthMM, 0)

	colored := gocv.NewMat()
	gocv.ApplyColorMap(scaled, &colored, gocv.ColormapJet)
	return colored
}

// Display shows one color/depth pair and reports whether the user asked to quit.
type Display interface {
	Show(rgb, depth *realsensecontrol.ImageBuffer) (quit bool, err error)
}

// Window is a Display backed by an OpenCV window.
type Window struct {
	win        *gocv.Window
	maxDepthMM float64
}

// NewWindow opens a window.
func NewWindow(name string) *Window {
	return &Window{win: gocv.NewWindow(name), maxDepthMM: defaultMaxDepthMM}
}

// Show draws color and colorized depth side by side.
func (w *Window) Show(rgb, depth *realsensecontrol.ImageBuffer) (bool, error) {
	colorMat, err := ToMat(rgb)
	if err != nil {
		return false, err
	}
	defer colorMat.Close()

	depthMat, err := ToMat(depth)
	if err != nil {
		return false, err
	}
	defer depthMat.Close()

	colored := ColorizeDepth(depthMat, w.maxDepthMM)
	defer colored.Close()

	both := gocv.NewMat()
	defer both.Close()
	gocv.Hconcat(colorMat, colored, &both)

	w.win.IMShow(both)
	switch key := w.win.WaitKey(1); key {
	case 'q', 27:
		return true, nil
	}
	return false, nil
}

// Close closes the window.
func (w *Window) Close() error {
	return w.win.Close()
}

// Run pulls frames from a started controller into d until ctx is cancelled or
// the user quits. The pipeline is stopped on every exit path.
func Run(ctx context.Context, ctrl *realsensecontrol.Controller, d Display, logger logging.Logger) (err error) {
	defer func() {
		if ctrl.IsStreaming() {
			err = multierr.Combine(err, ctrl.Stop())
		}
	}()

	shown := 0
	for {
		select {
		case <-ctx.Done():
			logger.Infow("preview interrupted", "frames", shown)
			return nil
		default:
		}

		rgb, depth, err := ctrl.GetFrames(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				logger.Infow("preview interrupted", "frames", shown)
				return nil
			}
			logger.Errorw("an error occurred during the main loop", "error", err)
			return err
		}
		quit, err := d.Show(rgb, depth)
		if err != nil {
			return err
		}
		shown++
		if quit {
			logger.Infow("preview closed", "frames", shown)
			return nil
		}
	}
}
