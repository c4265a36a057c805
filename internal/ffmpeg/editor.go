package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/saw4405/splat-replay/internal/config"
)

// Shell exposes the edit operations the auto-editor composes: merging,
// sidecar embedding and extraction, audio adjustments.
type Shell struct {
	ffmpeg  string
	prober  *Prober
	tempDir string
	logger  *slog.Logger
}

// NewShell resolves the binaries and builds the shell. Empty paths
// fall back to PATH lookup.
func NewShell(cfg config.FFmpegConfig, tempDir string, logger *slog.Logger) (*Shell, error) {
	ffmpegPath, err := resolveBinary(cfg.BinaryPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := resolveBinary(cfg.ProbePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	return &Shell{
		ffmpeg:  ffmpegPath,
		prober:  NewProber(ffprobePath, 30*time.Second),
		tempDir: tempDir,
		logger:  logger.With("component", "ffmpeg"),
	}, nil
}

func resolveBinary(configured, name string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured %s binary: %w", name, err)
		}
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// Prober returns the ffprobe wrapper.
func (s *Shell) Prober() *Prober { return s.prober }

// Merge concatenates input videos into output using the concat demuxer
// without re-encoding.
func (s *Shell) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("merge needs at least one input")
	}
	listPath, err := s.writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(listPath, "-f", "concat", "-safe", "0").
		CopyStreams().
		Output(output).
		Build()
	return s.run(ctx, cmd)
}

// concatEscape quotes a path for an ffconcat list entry.
func concatEscape(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func (s *Shell) writeConcatList(inputs []string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating concat list: %w", err)
	}
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		if _, err := fmt.Fprintf(f, "file %s\n", concatEscape(abs)); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("writing concat list: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing concat list: %w", err)
	}
	return f.Name(), nil
}

// EmbedMetadata rewrites the container with one metadata key set.
func (s *Shell) EmbedMetadata(ctx context.Context, path, key, value string) error {
	tmp := s.siblingTemp(path)
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		CopyStreams().
		Metadata(key, value).
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// GetMetadata reads one container metadata value; empty when unset.
func (s *Shell) GetMetadata(ctx context.Context, path, key string) (string, error) {
	res, err := s.prober.Probe(ctx, path)
	if err != nil {
		return "", err
	}
	for k, v := range res.Format.Tags {
		if strings.EqualFold(k, key) {
			return v, nil
		}
	}
	return "", nil
}

// EmbedSubtitle muxes an SRT file in as a subtitle stream.
func (s *Shell) EmbedSubtitle(ctx context.Context, path, srtPath string) error {
	tmp := s.siblingTemp(path)
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		Input(srtPath).
		Map("0").
		Map("1:0").
		CopyStreams().
		OutputArgs("-c:s", "srt").
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// GetSubtitle extracts the first subtitle stream as SRT text; empty
// when the container has none.
func (s *Shell) GetSubtitle(ctx context.Context, path string) (string, error) {
	res, err := s.prober.Probe(ctx, path)
	if err != nil {
		return "", err
	}
	if len(res.StreamsOfType("subtitle")) == 0 {
		return "", nil
	}

	tmp := filepath.Join(s.tempDir, fmt.Sprintf("subs-%d.srt", time.Now().UnixNano()))
	defer os.Remove(tmp)
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		Map("0:s:0").
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		return "", err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("reading extracted subtitle: %w", err)
	}
	return string(data), nil
}

// EmbedThumbnail attaches a PNG as the container thumbnail.
func (s *Shell) EmbedThumbnail(ctx context.Context, path, pngPath string) error {
	tmp := s.siblingTemp(path)
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		Input(pngPath).
		Map("0").
		Map("1").
		CopyStreams().
		OutputArgs("-disposition:v:1", "attached_pic").
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// GetThumbnail extracts the attached thumbnail as PNG bytes; nil when
// the container has none.
func (s *Shell) GetThumbnail(ctx context.Context, path string) ([]byte, error) {
	res, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(res.StreamsOfType("video")) < 2 {
		return nil, nil
	}

	tmp := filepath.Join(s.tempDir, fmt.Sprintf("thumb-%d.png", time.Now().UnixNano()))
	defer os.Remove(tmp)
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		Map("0:v:1").
		OutputArgs("-frames:v", "1").
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("reading extracted thumbnail: %w", err)
	}
	return data, nil
}

// ChangeVolume re-encodes the audio track with a gain multiplier.
func (s *Shell) ChangeVolume(ctx context.Context, path string, multiplier float64) error {
	tmp := s.siblingTemp(path)
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		VideoCodec("copy").
		AudioFilter(fmt.Sprintf("volume=%g", multiplier)).
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// VideoLength returns the container duration.
func (s *Shell) VideoLength(ctx context.Context, path string) (time.Duration, error) {
	return s.prober.VideoLength(ctx, path)
}

// AddAudioTrack mixes an extra audio file in as an additional track,
// offset from the start of the video.
func (s *Shell) AddAudioTrack(ctx context.Context, path, audioPath string, offset time.Duration) error {
	tmp := s.siblingTemp(path)
	delayMs := offset.Milliseconds()
	cmd := NewCommandBuilder(s.ffmpeg).
		HideBanner().
		Overwrite().
		Input(path).
		Input(audioPath, "-itsoffset", fmt.Sprintf("%.3f", float64(delayMs)/1000)).
		Map("0").
		Map("1:a:0").
		CopyStreams().
		OutputArgs("-c:a:1", "aac").
		Output(tmp).
		Build()
	if err := s.run(ctx, cmd); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Shell) siblingTemp(path string) string {
	dir := filepath.Dir(path)
	return filepath.Join(dir, fmt.Sprintf(".%s.tmp%s", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), filepath.Ext(path)))
}

func (s *Shell) run(ctx context.Context, cmd *Command) error {
	s.logger.Debug("running ffmpeg", slog.String("command", cmd.String()))
	if err := cmd.Run(ctx); err != nil {
		s.logger.Error("ffmpeg failed",
			slog.String("command", cmd.String()),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
