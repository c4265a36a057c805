package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/saw4405/splat-replay/internal/vision"
)

// Tesseract runs the tesseract binary as a subprocess per request. The
// image is piped in as PNG on stdin; recognized text comes back on
// stdout. Subprocess failures are logged here and surfaced as errors so
// the analyzer can treat them as a miss.
type Tesseract struct {
	binary string
	lang   string
	logger *slog.Logger
}

// NewTesseract builds a subprocess engine. An empty binary path means
// "tesseract" resolved from PATH. Language defaults to eng, which is
// all the digit and rank ROIs need.
func NewTesseract(binary string, logger *slog.Logger) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{
		binary: binary,
		lang:   "eng",
		logger: logger.With("component", "ocr"),
	}
}

// RecognizeText implements Engine.
func (t *Tesseract) RecognizeText(ctx context.Context, img *vision.Gray, psm PageSegMode, whitelist string) (string, error) {
	encoded, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encoding ocr input: %w", err)
	}

	args := []string{"stdin", "stdout", "-l", t.lang, "--psm", psm.tesseractCode()}
	if whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+whitelist)
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdin = bytes.NewReader(encoded)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.logger.Warn("tesseract failed",
			slog.String("error", err.Error()),
			slog.String("stderr", strings.TrimSpace(stderr.String())))
		return "", fmt.Errorf("running tesseract: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

func encodePNG(g *vision.Gray) ([]byte, error) {
	img := &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
