package sim

import (
	"sort"

	"github.com/pkg/errors"

	"realsensecontrol/sdk"
)

type config struct {
	streams    map[sdk.Stream]sdk.StreamRequest
	inputFile  string
	recordFile string
}

func (c *config) EnableStream(req sdk.StreamRequest) error {
	switch req.Stream {
	case sdk.StreamDepth:
		if req.Format == sdk.FormatAny {
			req.Format = sdk.FormatZ16
		}
		if req.Format != sdk.FormatZ16 {
			return errors.Wrapf(sdk.ErrUnsupportedStream, "%s", req)
		}
	case sdk.StreamColor:
		if req.Format == sdk.FormatAny {
			req.Format = sdk.FormatBGR8
		}
		if req.Format != sdk.FormatBGR8 && req.Format != sdk.FormatRGB8 {
			return errors.Wrapf(sdk.ErrUnsupportedStream, "%s", req)
		}
	default:
		return errors.Wrapf(sdk.ErrInvalidArgument, "cannot enable %s", req.Stream)
	}
	if req.Width <= 0 || req.Height <= 0 || req.FPS <= 0 {
		return errors.Wrapf(sdk.ErrInvalidArgument, "%s", req)
	}
	c.streams[req.Stream] = req
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

// requests returns the enabled streams in stream order.
func (c *config) requests() []sdk.StreamRequest {
	out := make([]sdk.StreamRequest, 0, len(c.streams))
	for _, r := range c.streams {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream < out[j].Stream })
	return out
}
