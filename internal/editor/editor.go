package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/speech"
	"github.com/saw4405/splat-replay/internal/storage"
	"github.com/saw4405/splat-replay/internal/subtitle"
)

// ErrCancelled is returned when a cancel request lands between steps.
var ErrCancelled = errors.New("edit cancelled")

// VideoShell is the slice of the FFmpeg shell the editor drives.
type VideoShell interface {
	Merge(ctx context.Context, inputs []string, output string) error
	EmbedMetadata(ctx context.Context, path, key, value string) error
	EmbedSubtitle(ctx context.Context, path, srtPath string) error
	EmbedThumbnail(ctx context.Context, path, pngPath string) error
	ChangeVolume(ctx context.Context, path string, multiplier float64) error
	VideoLength(ctx context.Context, path string) (time.Duration, error)
	AddAudioTrack(ctx context.Context, path, audioPath string, offset time.Duration) error
}

// AssetStore is the repository surface the editor needs.
type AssetStore interface {
	ListRecordings() ([]storage.VideoAsset, error)
	SaveEdited(ctx context.Context, videoPath string) (string, error)
}

// Editor merges each slot's recordings into one upload-ready video.
type Editor struct {
	cfg     config.EditorConfig
	shell   VideoShell
	synth   speech.Synthesizer
	store   AssetStore
	bus     *events.Bus
	tempDir string
	logger  *slog.Logger

	cancelled atomic.Bool
}

// New builds the editor. synth may be nil when narration is disabled.
func New(cfg config.EditorConfig, shell VideoShell, synth speech.Synthesizer,
	store AssetStore, bus *events.Bus, tempDir string, logger *slog.Logger) *Editor {
	return &Editor{
		cfg:     cfg,
		shell:   shell,
		synth:   synth,
		store:   store,
		bus:     bus,
		tempDir: tempDir,
		logger:  logger.With("component", "editor"),
	}
}

// RequestCancel aborts the run at the next step boundary.
func (e *Editor) RequestCancel() { e.cancelled.Store(true) }

func (e *Editor) checkCancel() error {
	if e.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

// Run edits every pending slot. Slot failures are reported per item;
// the run continues with the next slot.
func (e *Editor) Run(ctx context.Context) error {
	e.cancelled.Store(false)

	assets, err := e.store.ListRecordings()
	if err != nil {
		return fmt.Errorf("listing recordings: %w", err)
	}
	slots := GroupIntoSlots(assets, e.cfg.SlotHours)
	if len(slots) == 0 {
		e.logger.Info("nothing to edit")
		return nil
	}

	progress := events.NewProgressReporter(e.bus, "auto-edit", "自動編集")
	progress.Total(len(slots))
	keys := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = s.Key
	}
	progress.Items(keys)

	var firstErr error
	for i, slot := range slots {
		if err := e.checkCancel(); err != nil {
			progress.Finish(false, "cancelled")
			return err
		}
		progress.ItemStage(i, slot.Key, "編集中")
		if err := e.editSlot(ctx, slot, progress, i); err != nil {
			if errors.Is(err, ErrCancelled) {
				progress.ItemFinish(i, slot.Key, false, "cancelled")
				progress.Finish(false, "cancelled")
				return err
			}
			e.logger.Error("slot edit failed",
				slog.String("slot", slot.Key),
				slog.String("error", err.Error()))
			progress.ItemFinish(i, slot.Key, false, err.Error())
			if firstErr == nil {
				firstErr = err
			}
		} else {
			progress.ItemFinish(i, slot.Key, true, "")
		}
		progress.Advance(i + 1)
	}
	progress.Finish(firstErr == nil, "")
	return firstErr
}

func (e *Editor) editSlot(ctx context.Context, slot Slot, progress *events.ProgressReporter, item int) error {
	output := filepath.Join(e.tempDir, slot.Key+".mkv")
	defer os.Remove(output)

	steps := []struct {
		key   string
		label string
		run   func() error
	}{
		{"merge", "結合", func() error { return e.merge(ctx, slot, output) }},
		{"subtitle", "字幕", func() error { return e.embedSubtitles(ctx, slot, output) }},
		{"thumbnail", "サムネイル", func() error { return e.embedThumbnail(ctx, slot, output) }},
		{"narration", "ナレーション", func() error { return e.addNarration(ctx, slot, output) }},
		{"volume", "音量調整", func() error { return e.adjustVolume(ctx, output) }},
	}
	for si, step := range steps {
		if err := e.checkCancel(); err != nil {
			return err
		}
		progress.Stage(step.key, step.label, si, len(steps)+1)
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.key, err)
		}
	}

	if err := e.checkCancel(); err != nil {
		return err
	}
	progress.Stage("save", "保存", len(steps), len(steps)+1)
	saved, err := e.store.SaveEdited(ctx, output)
	if err != nil {
		return fmt.Errorf("saving edited video: %w", err)
	}
	e.logger.Info("slot edited",
		slog.String("slot", slot.Key),
		slog.Int("clips", len(slot.Assets)),
		slog.String("path", saved))
	return nil
}

func (e *Editor) merge(ctx context.Context, slot Slot, output string) error {
	inputs := make([]string, len(slot.Assets))
	for i, a := range slot.Assets {
		inputs[i] = a.VideoPath
	}
	if err := e.shell.Merge(ctx, inputs, output); err != nil {
		return err
	}
	return e.shell.EmbedMetadata(ctx, output, "title", slotTitle(slot))
}

// embedSubtitles concatenates the per-clip SRTs with running offsets
// derived from the clip lengths.
func (e *Editor) embedSubtitles(ctx context.Context, slot Slot, output string) error {
	tracks := make([]*subtitle.Track, len(slot.Assets))
	offsets := make([]time.Duration, len(slot.Assets))
	var offset time.Duration
	any := false
	for i, a := range slot.Assets {
		offsets[i] = offset
		length, err := e.shell.VideoLength(ctx, a.VideoPath)
		if err != nil {
			return fmt.Errorf("measuring %s: %w", a.ID, err)
		}
		offset += length

		if a.SubtitlePath == "" {
			continue
		}
		data, err := os.ReadFile(a.SubtitlePath)
		if err != nil {
			e.logger.Warn("subtitle unreadable, skipping",
				slog.String("id", a.ID), slog.String("error", err.Error()))
			continue
		}
		track, err := subtitle.Parse(string(data))
		if err != nil || len(track.Cues) == 0 {
			continue
		}
		tracks[i] = track
		any = true
	}
	if !any {
		return nil
	}

	merged, err := subtitle.Concat(tracks, offsets)
	if err != nil {
		return err
	}
	srtPath := filepath.Join(e.tempDir, slot.Key+".srt")
	defer os.Remove(srtPath)
	if err := os.WriteFile(srtPath, []byte(merged.Render()), 0o644); err != nil {
		return fmt.Errorf("writing merged subtitle: %w", err)
	}
	return e.shell.EmbedSubtitle(ctx, output, srtPath)
}

func (e *Editor) embedThumbnail(ctx context.Context, slot Slot, output string) error {
	paths := make([]string, 0, len(slot.Assets))
	for _, a := range slot.Assets {
		paths = append(paths, a.ThumbnailPath)
	}
	sources := loadThumbnailSources(paths)
	if len(sources) == 0 {
		return nil
	}
	pngPath := filepath.Join(e.tempDir, slot.Key+".png")
	defer os.Remove(pngPath)
	if err := writePNG(pngPath, ComposeThumbnail(sources)); err != nil {
		return err
	}
	return e.shell.EmbedThumbnail(ctx, output, pngPath)
}

func (e *Editor) addNarration(ctx context.Context, slot Slot, output string) error {
	if !e.cfg.Narration || e.synth == nil {
		return nil
	}
	text := narrationText(slot)
	audio, err := e.synth.Synthesize(ctx, text)
	if err != nil {
		e.logger.Warn("narration synthesis failed, skipping",
			slog.String("slot", slot.Key), slog.String("error", err.Error()))
		return nil
	}
	wavPath := filepath.Join(e.tempDir, slot.Key+".wav")
	defer os.Remove(wavPath)
	if err := os.WriteFile(wavPath, audio.EncodeWAV(), 0o644); err != nil {
		return fmt.Errorf("writing narration audio: %w", err)
	}
	return e.shell.AddAudioTrack(ctx, output, wavPath, 0)
}

func (e *Editor) adjustVolume(ctx context.Context, output string) error {
	if e.cfg.Volume <= 0 || e.cfg.Volume == 1 {
		return nil
	}
	return e.shell.ChangeVolume(ctx, output, e.cfg.Volume)
}

// slotTitle renders the human title for a slot's merged video.
func slotTitle(slot Slot) string {
	var match models.Match
	mixed := false
	for _, a := range slot.Assets {
		if a.Metadata == nil || a.Metadata.Result.Battle == nil {
			continue
		}
		m := a.Metadata.Result.Battle.Match
		if match == "" {
			match = m
		} else if !match.EqualsRelaxed(m) {
			mixed = true
		}
	}
	title := slot.Start.Format("2006-01-02 15時枠")
	if match != "" && !mixed {
		title += " " + string(match)
	}
	return title
}

// narrationText summarizes the slot's battles for synthesis.
func narrationText(slot Slot) string {
	wins, losses := 0, 0
	for _, a := range slot.Assets {
		if a.Metadata == nil {
			continue
		}
		switch a.Metadata.Judgement {
		case models.JudgementWin:
			wins++
		case models.JudgementLose:
			losses++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d試合を記録しました。", len(slot.Assets))
	if wins+losses > 0 {
		fmt.Fprintf(&b, "%d勝%d敗でした。", wins, losses)
	}
	return b.String()
}
