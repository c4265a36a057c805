package analyzer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
)

// Salmon screen keys expected in the matcher configuration.
const (
	keySalmonStart  = "salmon_start"
	keySalmonFinish = "salmon_finish"
	keySalmonResult = "salmon_result"
)

// SalmonAnalyzer is the Salmon Run plugin. Screen detection works off
// the registry; the extraction side of the capability set is not filled
// in yet, so those methods always miss. Recording still works, the
// sidecar just carries no result.
type SalmonAnalyzer struct {
	registry *vision.Registry
	logger   *slog.Logger
	warnOnce sync.Once
}

// NewSalmonAnalyzer builds the salmon plugin.
func NewSalmonAnalyzer(registry *vision.Registry, logger *slog.Logger) *SalmonAnalyzer {
	return &SalmonAnalyzer{
		registry: registry,
		logger:   logger.With("component", "analyzer.salmon"),
	}
}

// Mode implements ModeAnalyzer.
func (a *SalmonAnalyzer) Mode() models.GameMode { return models.GameModeSalmon }

func (a *SalmonAnalyzer) notImplemented(what string) {
	a.warnOnce.Do(func() {
		a.logger.Warn("salmon extraction not implemented, recordings will carry no result",
			slog.String("first_missed", what))
	})
}

// ExtractRate always misses; Salmon Run has no rating on the select
// screen this analyzer reads.
func (a *SalmonAnalyzer) ExtractRate(context.Context, *vision.Frame, models.Match) (models.Rate, bool) {
	return models.Rate{}, false
}

// DetectSessionStart reports the shift intro screen.
func (a *SalmonAnalyzer) DetectSessionStart(f *vision.Frame) bool {
	return a.registry.Match(keySalmonStart, f)
}

// DetectSessionAbort always misses; shifts have no abort screen.
func (a *SalmonAnalyzer) DetectSessionAbort(*vision.Frame) bool { return false }

// DetectSessionFinish reports the shift end splash.
func (a *SalmonAnalyzer) DetectSessionFinish(f *vision.Frame) bool {
	return a.registry.Match(keySalmonFinish, f)
}

// DetectSessionJudgement always misses; shifts have no WIN/LOSE splash.
func (a *SalmonAnalyzer) DetectSessionJudgement(*vision.Frame) bool { return false }

// ExtractSessionJudgement always misses.
func (a *SalmonAnalyzer) ExtractSessionJudgement(*vision.Frame) (models.Judgement, bool) {
	return "", false
}

// DetectSessionResult reports the shift result screen.
func (a *SalmonAnalyzer) DetectSessionResult(f *vision.Frame) bool {
	return a.registry.Match(keySalmonResult, f)
}

// ExtractSessionResult is not implemented for Salmon Run.
func (a *SalmonAnalyzer) ExtractSessionResult(context.Context, *vision.Frame) (models.Result, bool) {
	a.notImplemented("session_result")
	return models.Result{}, false
}

// DetectLoading reports the inter-screen loading spinner.
func (a *SalmonAnalyzer) DetectLoading(f *vision.Frame) bool {
	return a.registry.Match(keyLoading, f)
}

// DetectLoadingEnd reports that the loading spinner has gone.
func (a *SalmonAnalyzer) DetectLoadingEnd(f *vision.Frame) bool {
	return a.registry.Match(keyLoadingEnd, f)
}
