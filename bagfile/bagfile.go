// Package bagfile inspects capture files recorded by the camera SDK. Recording and
// playback stay with the SDK; this package only reads what a file contains.
package bagfile

import (
	"os"
	"sort"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Summary describes the contents of a bag file.
type Summary struct {
	Path string
	// Messages counts messages per topic.
	Messages map[string]int
	// Frames counts image frames per stream, keyed like "Depth_0" or "Color_0".
	Frames map[string]int
}

// Topics returns the topic names in sorted order.
func (s *Summary) Topics() []string {
	out := make([]string, 0, len(s.Messages))
	for t := range s.Messages {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Streams returns the image stream names in sorted order.
func (s *Summary) Streams() []string {
	out := make([]string, 0, len(s.Frames))
	for st := range s.Frames {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// Read loads a bag file.
func Read(path string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open bag file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read bag file %q", path)
	}
	return rb, nil
}

// Summarize reads a bag file and counts its messages from the index records,
// without decoding any payloads.
func Summarize(path string) (*Summary, error) {
	rb, err := Read(path)
	if err != nil {
		return nil, err
	}
	return summarize(path, rb), nil
}

func summarize(path string, rb *rosbag.RosBag) *Summary {
	s := &Summary{Path: path, Messages: map[string]int{}, Frames: map[string]int{}}
	for _, conn := range rb.Connections {
		s.Messages[conn.HeaderTopic] = 0
	}
	for _, idx := range rb.Indexes {
		for _, data := range idx.Index {
			conn, ok := rb.Connections[data.ConnectionID]
			if !ok {
				continue
			}
			n := int(data.MessageCount)
			s.Messages[conn.HeaderTopic] += n
			if stream, ok := ImageStream(conn.HeaderTopic); ok {
				s.Frames[stream] += n
			}
		}
	}
	return s
}

// ImageStream extracts the stream name from an image data topic of the form
// /device_N/sensor_M/<Stream>_K/image/data.
func ImageStream(topic string) (string, bool) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 5 || parts[3] != "image" || parts[4] != "data" {
		return "", false
	}
	if !strings.HasPrefix(parts[0], "device_") || !strings.HasPrefix(parts[1], "sensor_") {
		return "", false
	}
	return parts[2], true
}
