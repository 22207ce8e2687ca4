package preview

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"realsensecontrol"
	"realsensecontrol/sdk"
	"realsensecontrol/sdk/sim"
)

type countingDisplay struct {
	shown  int
	quitAt int
	err    error
}

func (d *countingDisplay) Show(rgb, depth *realsensecontrol.ImageBuffer) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	d.shown++
	return d.shown >= d.quitAt, nil
}

func startedController(t *testing.T, logger logging.Logger) *realsensecontrol.Controller {
	t.Helper()
	ctrl := realsensecontrol.NewController(sim.New(), logger)
	_, err := ctrl.Initialize(context.Background(), realsensecontrol.InitOptions{Width: 320, Height: 240, FPS: 90})
	test.That(t, err, test.ShouldBeNil)
	return ctrl
}

func TestRunStopsOnQuit(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctrl := startedController(t, logger)
	d := &countingDisplay{quitAt: 3}

	test.That(t, Run(context.Background(), ctrl, d, logger), test.ShouldBeNil)
	test.That(t, d.shown, test.ShouldEqual, 3)
	test.That(t, ctrl.IsStreaming(), test.ShouldBeFalse)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctrl := startedController(t, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	test.That(t, Run(ctx, ctrl, &countingDisplay{quitAt: 1 << 30}, logger), test.ShouldBeNil)
	test.That(t, ctrl.IsStreaming(), test.ShouldBeFalse)
}

func TestRunStopsOnDisplayError(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctrl := startedController(t, logger)
	boom := errors.New("window gone")

	err := Run(context.Background(), ctrl, &countingDisplay{err: boom}, logger)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, ctrl.IsStreaming(), test.ShouldBeFalse)
}

func TestRunUnstartedController(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctrl := realsensecontrol.NewController(sim.New(), logger)
	err := Run(context.Background(), ctrl, &countingDisplay{quitAt: 1}, logger)
	test.That(t, errors.Is(err, realsensecontrol.ErrOperationFailed), test.ShouldBeTrue)
}

func TestToMat(t *testing.T) {
	depth := &realsensecontrol.ImageBuffer{
		Width: 4, Height: 2, Channels: 1, Format: sdk.FormatZ16, Pix: make([]byte, 4*2*2),
	}
	m, err := ToMat(depth)
	test.That(t, err, test.ShouldBeNil)
	defer m.Close()
	test.That(t, m.Rows(), test.ShouldEqual, 2)
	test.That(t, m.Cols(), test.ShouldEqual, 4)
	test.That(t, m.Channels(), test.ShouldEqual, 1)

	colored := ColorizeDepth(m, 0)
	defer colored.Close()
	test.That(t, colored.Channels(), test.ShouldEqual, 3)

	rgb := &realsensecontrol.ImageBuffer{
		Width: 4, Height: 2, Channels: 3, Format: sdk.FormatRGB8, Pix: make([]byte, 4*2*3),
	}
	rgb.Pix[0] = 200
	cm, err := ToMat(rgb)
	test.That(t, err, test.ShouldBeNil)
	defer cm.Close()
	test.That(t, cm.Channels(), test.ShouldEqual, 3)
	// red moved to the last channel
	test.That(t, cm.GetVecbAt(0, 0)[2], test.ShouldEqual, uint8(200))

	_, err = ToMat(&realsensecontrol.ImageBuffer{Format: sdk.FormatAny})
	test.That(t, err, test.ShouldNotBeNil)
}
