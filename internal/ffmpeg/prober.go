package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// ProbeResult is the subset of ffprobe output the editor needs.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container-level information.
type ProbeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// ProbeStream contains per-stream information.
type ProbeStream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Width      int               `json:"width,omitempty"`
	Height     int               `json:"height,omitempty"`
	Duration   string            `json:"duration,omitempty"`
	SampleRate string            `json:"sample_rate,omitempty"`
	Channels   int               `json:"channels,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// DurationSeconds parses the container duration.
func (r *ProbeResult) DurationSeconds() (float64, error) {
	if r.Format.Duration == "" {
		return 0, fmt.Errorf("probe result has no duration")
	}
	return strconv.ParseFloat(r.Format.Duration, 64)
}

// StreamsOfType filters streams by codec type (video, audio, subtitle).
func (r *ProbeResult) StreamsOfType(codecType string) []ProbeStream {
	var out []ProbeStream
	for _, s := range r.Streams {
		if s.CodecType == codecType {
			out = append(out, s)
		}
	}
	return out
}

// Prober wraps ffprobe.
type Prober struct {
	binary  string
	timeout time.Duration
}

// NewProber builds a prober for the given ffprobe binary.
func NewProber(ffprobePath string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{binary: ffprobePath, timeout: timeout}
}

// Probe inspects a media file.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}
	return parseProbeOutput(out)
}

// VideoLength returns the duration of a video file.
func (p *Prober) VideoLength(ctx context.Context, path string) (time.Duration, error) {
	res, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	secs, err := res.DurationSeconds()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var res ProbeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	return &res, nil
}
