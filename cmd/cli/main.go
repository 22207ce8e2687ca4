package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/utils"

	"realsensecontrol"
	"realsensecontrol/bagfile"
	"realsensecontrol/preview"
	"realsensecontrol/sdk"
	_ "realsensecontrol/sdk/librealsense"
	_ "realsensecontrol/sdk/sim"
)

const (
	flagWidth    = "width"
	flagHeight   = "height"
	flagFPS      = "fps"
	flagInput    = "input"
	flagRealTime = "realtime"
	flagOutput   = "output"
	flagBackend  = "backend"
	flagQuiet    = "quiet"
	flagDir      = "dir"
	flagWindow   = "window"
)

func main() {
	err := realMain(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain(args []string) error {
	err := newApp(logging.NewLogger("cli"), os.Stdout).Run(args)
	return multierr.Combine(err, sdk.CloseBackends())
}

func newApp(logger logging.Logger, out io.Writer) *cli.App {
	streamFlags := []cli.Flag{
		&cli.IntFlag{Name: flagWidth, Value: realsensecontrol.DefaultWidth, Usage: "stream width in pixels"},
		&cli.IntFlag{Name: flagHeight, Value: realsensecontrol.DefaultHeight, Usage: "stream height in pixels"},
		&cli.IntFlag{Name: flagFPS, Value: realsensecontrol.DefaultFPS, Usage: "frames per second"},
		&cli.StringFlag{Name: flagInput, Aliases: []string{"i"}, Usage: "play back from bag `FILE` instead of a live device"},
		&cli.BoolFlag{Name: flagRealTime, Usage: "pace playback at the recorded rate"},
		&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "record the session to bag `FILE`"},
		&cli.StringFlag{Name: flagBackend, Value: "librealsense", Usage: "camera sdk backend"},
		&cli.BoolFlag{Name: flagQuiet, Aliases: []string{"q"}, Usage: "do not log camera errors"},
	}

	previewFlags := append([]cli.Flag{
		&cli.StringFlag{Name: flagWindow, Value: preview.DefaultWindowName, Usage: "preview window title"},
	}, streamFlags...)

	return &cli.App{
		Name:   "realsense-control",
		Usage:  "preview and capture from a depth camera",
		Writer: out,
		Flags:  previewFlags,
		Action: func(c *cli.Context) error { return previewAction(c, logger) },
		Commands: []*cli.Command{
			{
				Name:   "preview",
				Usage:  "show color and depth side by side until q or Esc",
				Flags:  previewFlags,
				Action: func(c *cli.Context) error { return previewAction(c, logger) },
			},
			{
				Name:  "snapshot",
				Usage: "save one color png and one raw depth frame",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagDir, Value: ".", Usage: "output `DIR`"},
				}, streamFlags...),
				Action: func(c *cli.Context) error { return snapshotAction(c, logger) },
			},
			{
				Name:      "info",
				Usage:     "list the topics and image streams in a bag file",
				ArgsUsage: "<bag file>",
				Action:    infoAction,
			},
		},
	}
}

func startController(ctx context.Context, c *cli.Context, logger logging.Logger) (*realsensecontrol.Controller, error) {
	backend, err := sdk.LookupBackend(c.String(flagBackend))
	if err != nil {
		return nil, err
	}
	var opts []realsensecontrol.Option
	if c.Bool(flagQuiet) {
		opts = append(opts, realsensecontrol.WithLogLevel(realsensecontrol.LogSilent))
	}
	ctrl := realsensecontrol.NewController(backend, logger, opts...)
	if _, err := ctrl.Initialize(ctx, realsensecontrol.InitOptions{
		Width:            c.Int(flagWidth),
		Height:           c.Int(flagHeight),
		FPS:              c.Int(flagFPS),
		InputFile:        c.String(flagInput),
		RealTimePlayback: c.Bool(flagRealTime),
		OutputFile:       c.String(flagOutput),
	}); err != nil {
		return nil, multierr.Combine(err, ctrl.Close())
	}
	return ctrl, nil
}

func previewAction(c *cli.Context, logger logging.Logger) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctrl, err := startController(ctx, c, logger)
	if err != nil {
		return err
	}

	win := preview.NewWindow(c.String(flagWindow))
	defer func() {
		if err := win.Close(); err != nil {
			logger.Warnw("error closing window", "error", err)
		}
	}()
	return multierr.Combine(preview.Run(ctx, ctrl, win, logger), ctrl.Close())
}

func snapshotAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx := c.Context
	ctrl, err := startController(ctx, c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, ctrl.Close())
	}()

	rgb, depth, err := ctrl.GetFrames(ctx)
	if err != nil {
		return err
	}
	img, err := rgb.Image()
	if err != nil {
		return err
	}
	dm, err := depth.DepthMap()
	if err != nil {
		return err
	}

	dir := c.String(flagDir)
	colorPath := filepath.Join(dir, fmt.Sprintf("color_%d.png", rgb.Number))
	depthPath := filepath.Join(dir, fmt.Sprintf("depth_%d.dep", depth.Number))
	if err := writeImage(ctx, colorPath, img, utils.MimeTypePNG); err != nil {
		return err
	}
	if err := writeImage(ctx, depthPath, dm, utils.MimeTypeRawDepth); err != nil {
		return err
	}
	logger.Infow("saved snapshot", "color", colorPath, "depth", depthPath)
	return nil
}

func writeImage(ctx context.Context, path string, img image.Image, mimeType string) error {
	data, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func infoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("info needs exactly one bag file")
	}
	s, err := bagfile.Summarize(c.Args().First())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Topic", "Messages"})
	for _, topic := range s.Topics() {
		t.AppendRow(table.Row{topic, s.Messages[topic]})
	}
	fmt.Fprintln(c.App.Writer, t.Render())

	st := table.NewWriter()
	st.AppendHeader(table.Row{"Stream", "Frames"})
	for _, stream := range s.Streams() {
		st.AppendRow(table.Row{stream, s.Frames[stream]})
	}
	fmt.Fprintln(c.App.Writer, st.Render())
	return nil
}
