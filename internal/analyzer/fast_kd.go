package analyzer

import (
	"context"
	"strings"

	"github.com/saw4405/splat-replay/internal/ocr"
	"github.com/saw4405/splat-replay/internal/vision"
)

// stackedKillRecord is the experimental one-pass variant: the three
// binarized counters are stacked vertically and OCRed in a single
// call, one line per counter. Enabled by analyzer.fast_kd_ocr.
func (a *BattleAnalyzer) stackedKillRecord(ctx context.Context, kill, death, special *vision.Gray) (int, int, int, bool) {
	stacked := vision.VStack(0, kill, death, special)
	text, err := a.ocr.RecognizeText(ctx, stacked.Invert(), ocr.PSMSingleColumn, digitWhitelist)
	if err != nil {
		return 0, 0, 0, false
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 3 {
		return 0, 0, 0, false
	}

	values := make([]int, 3)
	for i, line := range lines {
		v, ok := parseCount(line)
		if !ok {
			return 0, 0, 0, false
		}
		values[i] = v
	}
	return values[0], values[1], values[2], true
}
