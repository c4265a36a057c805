// Package analyzer turns raw frames into semantic screen detections.
// A mode-agnostic dispatcher routes shared screens (match select,
// matching start, schedule change, power off) to the matcher registry
// and everything session-scoped to the plugin for the active game mode.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
)

// Mode-agnostic screen keys expected in the matcher configuration.
const (
	keyMatchSelect    = "match_select"
	keyMatchingStart  = "matching_start"
	keyScheduleChange = "schedule_change"
	keyPowerOff       = "power_off"

	groupBattleSelect = "battle_select"
)

// ModeAnalyzer is the per-mode capability set. Detection methods are
// pure pixel tests; extraction methods may OCR and therefore take a
// context. All of them report misses by returning false, never by
// erroring across the frame loop.
type ModeAnalyzer interface {
	Mode() models.GameMode

	ExtractRate(ctx context.Context, f *vision.Frame, match models.Match) (models.Rate, bool)

	DetectSessionStart(f *vision.Frame) bool
	DetectSessionAbort(f *vision.Frame) bool
	DetectSessionFinish(f *vision.Frame) bool
	DetectSessionJudgement(f *vision.Frame) bool
	ExtractSessionJudgement(f *vision.Frame) (models.Judgement, bool)
	DetectSessionResult(f *vision.Frame) bool
	ExtractSessionResult(ctx context.Context, f *vision.Frame) (models.Result, bool)

	DetectLoading(f *vision.Frame) bool
	DetectLoadingEnd(f *vision.Frame) bool
}

// FrameAnalyzer dispatches detections across the registry and the
// per-mode plugins.
type FrameAnalyzer struct {
	registry *vision.Registry
	plugins  map[models.GameMode]ModeAnalyzer
	ordered  []ModeAnalyzer
	logger   *slog.Logger
}

// New builds the dispatcher over the given plugins. Registration order
// is the probe order for DetectSessionStart.
func New(registry *vision.Registry, logger *slog.Logger, plugins ...ModeAnalyzer) *FrameAnalyzer {
	byMode := make(map[models.GameMode]ModeAnalyzer, len(plugins))
	for _, p := range plugins {
		byMode[p.Mode()] = p
	}
	return &FrameAnalyzer{
		registry: registry,
		plugins:  byMode,
		ordered:  plugins,
		logger:   logger.With("component", "analyzer"),
	}
}

// DetectSessionStart probes every plugin's session start screen and
// reports which game mode matched. Start screens are mutually
// exclusive on the console, so the first hit wins.
func (a *FrameAnalyzer) DetectSessionStart(f *vision.Frame) (models.GameMode, bool) {
	for _, p := range a.ordered {
		if p.DetectSessionStart(f) {
			return p.Mode(), true
		}
	}
	return "", false
}

// Plugin returns the analyzer for a mode, or nil when the mode has no
// plugin registered.
func (a *FrameAnalyzer) Plugin(mode models.GameMode) ModeAnalyzer {
	return a.plugins[mode]
}

// ExtractMatchSelect reads the selected match category off the match
// select screen.
func (a *FrameAnalyzer) ExtractMatchSelect(f *vision.Frame) (models.Match, bool) {
	name, ok := a.registry.MatchedName(groupBattleSelect, f)
	if !ok {
		return "", false
	}
	match, ok := models.ParseMatch(name)
	if !ok {
		a.logger.Warn("battle_select group produced unknown match label", slog.String("label", name))
		return "", false
	}
	return match, true
}

// DetectMatchSelect reports whether the match select screen is shown.
func (a *FrameAnalyzer) DetectMatchSelect(f *vision.Frame) bool {
	return a.registry.Match(keyMatchSelect, f)
}

// DetectMatchingStart reports whether matchmaking has started.
func (a *FrameAnalyzer) DetectMatchingStart(f *vision.Frame) bool {
	return a.registry.Match(keyMatchingStart, f)
}

// DetectScheduleChange reports the schedule rotation screen.
func (a *FrameAnalyzer) DetectScheduleChange(f *vision.Frame) bool {
	return a.registry.Match(keyScheduleChange, f)
}

// DetectPowerOff reports the console power-off sentinel screen.
func (a *FrameAnalyzer) DetectPowerOff(f *vision.Frame) bool {
	return a.registry.Match(keyPowerOff, f)
}
