package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/vision"
)

// FFmpegSource captures frames from a video device by running ffmpeg
// with a rawvideo BGR pipe on stdout.
type FFmpegSource struct {
	binary string
	cfg    config.CaptureConfig
	logger *slog.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
}

// NewFFmpegSource builds the capture source. binary may be empty to
// find ffmpeg on PATH during Setup.
func NewFFmpegSource(cfg config.CaptureConfig, binary string, logger *slog.Logger) *FFmpegSource {
	if cfg.Width <= 0 {
		cfg.Width = 1920
	}
	if cfg.Height <= 0 {
		cfg.Height = 1080
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &FFmpegSource{
		binary: binary,
		cfg:    cfg,
		logger: logger.With("component", "capture"),
	}
}

// Setup starts the ffmpeg capture process.
func (s *FFmpegSource) Setup(ctx context.Context) error {
	binary := s.binary
	if binary == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return fmt.Errorf("locating ffmpeg: %w", err)
		}
		binary = found
	}

	size := fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height)
	args := []string{"-loglevel", "error", "-hide_banner"}
	args = append(args, s.inputArgs(size)...)
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", size,
		"-r", strconv.Itoa(s.cfg.FPS),
		"-",
	)

	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting capture process: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.buf = make([]byte, s.cfg.Width*s.cfg.Height*3)
	s.logger.Info("capture started",
		slog.String("device", s.cfg.DeviceName),
		slog.String("size", size),
		slog.Int("fps", s.cfg.FPS))
	return nil
}

func (s *FFmpegSource) inputArgs(size string) []string {
	if runtime.GOOS == "windows" {
		return []string{
			"-f", "dshow",
			"-video_size", size,
			"-framerate", strconv.Itoa(s.cfg.FPS),
			"-i", "video=" + s.cfg.DeviceName,
		}
	}
	device := s.cfg.DeviceName
	if device == "" {
		device = "/dev/video0"
	}
	return []string{
		"-f", "v4l2",
		"-video_size", size,
		"-framerate", strconv.Itoa(s.cfg.FPS),
		"-i", device,
	}
}

// Capture reads one full frame from the pipe.
func (s *FFmpegSource) Capture(ctx context.Context) (*vision.Frame, error) {
	if s.stdout == nil {
		return nil, fmt.Errorf("capture source not set up")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	pix := make([]byte, len(s.buf))
	copy(pix, s.buf)
	return vision.NewFrame(pix, s.cfg.Width, s.cfg.Height)
}

// Teardown stops the capture process.
func (s *FFmpegSource) Teardown() error {
	if s.cmd == nil {
		return nil
	}
	if s.stdout != nil {
		s.stdout.Close()
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	if err != nil && err.Error() != "signal: killed" {
		s.logger.Debug("capture process exit", slog.String("error", err.Error()))
	}
	return nil
}

// NullSubtitleCapture satisfies SubtitleCapture when live transcription
// is not configured.
type NullSubtitleCapture struct{}

// Start implements SubtitleCapture.
func (NullSubtitleCapture) Start(context.Context) error { return nil }

// Stop implements SubtitleCapture.
func (NullSubtitleCapture) Stop(context.Context) (string, error) { return "", nil }
