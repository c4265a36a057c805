package editor

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/speech"
	"github.com/saw4405/splat-replay/internal/storage"
)

type shellCall struct {
	op   string
	args []string
}

type fakeShell struct {
	t       *testing.T
	calls   []shellCall
	lengths map[string]time.Duration
	srtText string
	failOp  string
}

func (f *fakeShell) record(op string, args ...string) error {
	f.calls = append(f.calls, shellCall{op: op, args: args})
	if f.failOp == op {
		return assert.AnError
	}
	return nil
}

func (f *fakeShell) Merge(_ context.Context, inputs []string, output string) error {
	if err := f.record("merge", append(append([]string{}, inputs...), output)...); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("merged"), 0o644)
}

func (f *fakeShell) EmbedMetadata(_ context.Context, path, key, value string) error {
	return f.record("metadata", path, key, value)
}

func (f *fakeShell) EmbedSubtitle(_ context.Context, path, srtPath string) error {
	data, err := os.ReadFile(srtPath)
	require.NoError(f.t, err)
	f.srtText = string(data)
	return f.record("subtitle", path, srtPath)
}

func (f *fakeShell) EmbedThumbnail(_ context.Context, path, pngPath string) error {
	require.FileExists(f.t, pngPath)
	return f.record("thumbnail", path, pngPath)
}

func (f *fakeShell) ChangeVolume(_ context.Context, path string, multiplier float64) error {
	return f.record("volume", path)
}

func (f *fakeShell) VideoLength(_ context.Context, path string) (time.Duration, error) {
	f.calls = append(f.calls, shellCall{op: "length", args: []string{path}})
	if d, ok := f.lengths[path]; ok {
		return d, nil
	}
	return time.Minute, nil
}

func (f *fakeShell) AddAudioTrack(_ context.Context, path, audioPath string, _ time.Duration) error {
	require.FileExists(f.t, audioPath)
	return f.record("narration", path, audioPath)
}

func (f *fakeShell) ops() []string {
	var ops []string
	for _, c := range f.calls {
		if c.op != "length" {
			ops = append(ops, c.op)
		}
	}
	return ops
}

type fakeStore struct {
	assets []storage.VideoAsset
	saved  []string
}

func (s *fakeStore) ListRecordings() ([]storage.VideoAsset, error) { return s.assets, nil }

func (s *fakeStore) SaveEdited(_ context.Context, videoPath string) (string, error) {
	s.saved = append(s.saved, filepath.Base(videoPath))
	return videoPath, nil
}

type fakeSynth struct{ texts []string }

func (s *fakeSynth) Synthesize(_ context.Context, text string) (*speech.Audio, error) {
	s.texts = append(s.texts, text)
	return &speech.Audio{SampleRate: 24000, PCM: []byte{0, 0, 1, 0}}, nil
}

func makeAsset(t *testing.T, dir, id string, startedAt time.Time, judgement models.Judgement, withSidecars bool) storage.VideoAsset {
	t.Helper()
	video := filepath.Join(dir, id+".mkv")
	require.NoError(t, os.WriteFile(video, []byte("v"), 0o644))
	asset := storage.VideoAsset{ID: id, VideoPath: video}

	meta := models.NewRecordingMetadata(models.GameModeBattle, startedAt)
	meta.Judgement = judgement
	meta.Result = models.Result{Battle: &models.BattleResult{Match: models.MatchXMatch}}
	asset.Metadata = meta

	if withSidecars {
		srt := filepath.Join(dir, id+".srt")
		require.NoError(t, os.WriteFile(srt,
			[]byte("1\n00:00:01,000 --> 00:00:02,000\nナイス\n"), 0o644))
		asset.SubtitlePath = srt

		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
		thumb := filepath.Join(dir, id+".png")
		require.NoError(t, os.WriteFile(thumb, buf.Bytes(), 0o644))
		asset.ThumbnailPath = thumb
	}
	return asset
}

func newTestEditor(t *testing.T, cfg config.EditorConfig, shell VideoShell, store *fakeStore, synth speech.Synthesizer) (*Editor, *events.Subscription) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bus := events.NewBus(256, logger)
	t.Cleanup(bus.Close)
	ed := New(cfg, shell, synth, store, bus, t.TempDir(), logger)
	return ed, bus.Subscribe()
}

func TestRunEditsSlot(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 18, 10, 0, 0, time.Local)
	store := &fakeStore{assets: []storage.VideoAsset{
		makeAsset(t, dir, "20250101_181000", base, models.JudgementWin, true),
		makeAsset(t, dir, "20250101_184500", base.Add(35*time.Minute), models.JudgementLose, true),
	}}
	shell := &fakeShell{t: t, lengths: map[string]time.Duration{
		store.assets[0].VideoPath: 3 * time.Minute,
	}}
	synth := &fakeSynth{}
	ed, _ := newTestEditor(t, config.EditorConfig{
		SlotHours: []int{6, 12, 18},
		Narration: true,
		Volume:    1.5,
	}, shell, store, synth)

	require.NoError(t, ed.Run(context.Background()))

	assert.Equal(t, []string{"merge", "metadata", "subtitle", "thumbnail", "narration", "volume"}, shell.ops())
	assert.Equal(t, []string{"20250101_18.mkv"}, store.saved)

	// Second clip's cue is shifted by the first clip's length.
	assert.Contains(t, shell.srtText, "00:00:01,000 --> 00:00:02,000")
	assert.Contains(t, shell.srtText, "00:03:01,000 --> 00:03:02,000")

	require.Len(t, synth.texts, 1)
	assert.Contains(t, synth.texts[0], "2試合")
	assert.Contains(t, synth.texts[0], "1勝1敗")
}

func TestRunWithoutAssetsIsNoOp(t *testing.T) {
	shell := &fakeShell{t: t}
	store := &fakeStore{}
	ed, sub := newTestEditor(t, config.EditorConfig{SlotHours: []int{6}}, shell, store, nil)

	require.NoError(t, ed.Run(context.Background()))
	assert.Empty(t, shell.calls)
	assert.Empty(t, sub.Poll(0), "no progress events for an empty run")
}

func TestRunContinuesAfterSlotFailure(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{assets: []storage.VideoAsset{
		makeAsset(t, dir, "20250101_181000", time.Date(2025, 1, 1, 18, 10, 0, 0, time.Local), models.JudgementWin, false),
		makeAsset(t, dir, "20250102_181000", time.Date(2025, 1, 2, 18, 10, 0, 0, time.Local), models.JudgementWin, false),
	}}
	shell := &fakeShell{t: t, failOp: "metadata"}
	ed, sub := newTestEditor(t, config.EditorConfig{SlotHours: []int{18}}, shell, store, nil)

	err := ed.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.saved)

	var finishes []events.Event
	for _, ev := range sub.Poll(0) {
		if ev.Type == events.TypeProgressItemFinish {
			finishes = append(finishes, ev)
		}
	}
	require.Len(t, finishes, 2, "both slots attempted")
	assert.Equal(t, false, finishes[0].Payload["success"])
}

func TestRequestCancelStopsRun(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{assets: []storage.VideoAsset{
		makeAsset(t, dir, "20250101_181000", time.Date(2025, 1, 1, 18, 10, 0, 0, time.Local), models.JudgementWin, false),
	}}
	shell := &fakeShell{t: t}
	ed, _ := newTestEditor(t, config.EditorConfig{SlotHours: []int{18}}, shell, store, nil)

	ed.RequestCancel()
	err := ed.Run(context.Background())
	// Run resets the flag at entry, so a pre-set flag does not cancel.
	require.NoError(t, err)

	// Cancelling mid-run stops at the next step boundary.
	cs := &cancellingShell{fakeShell: &fakeShell{t: t}}
	ed2, _ := newTestEditor(t, config.EditorConfig{SlotHours: []int{18}}, cs, store, nil)
	cs.editor = ed2
	err = ed2.Run(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, []string{"merge", "metadata"}, cs.fakeShell.ops())
}

// cancellingShell requests cancel during the merge stage.
type cancellingShell struct {
	*fakeShell
	editor *Editor
}

func (c *cancellingShell) Merge(ctx context.Context, inputs []string, output string) error {
	err := c.fakeShell.Merge(ctx, inputs, output)
	c.editor.RequestCancel()
	return err
}

func TestSlotTitle(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.Local)
	slot := Slot{
		Start: start,
		Assets: []storage.VideoAsset{
			makeAsset(t, dir, "20250101_181000", start.Add(10*time.Minute), models.JudgementWin, false),
		},
	}
	assert.Equal(t, "2025-01-01 18時枠 Xマッチ", slotTitle(slot))
}

func TestComposeThumbnailGrid(t *testing.T) {
	one := image.NewRGBA(image.Rect(0, 0, 192, 108))
	img := ComposeThumbnail([]image.Image{one, one, one})
	assert.Equal(t, thumbWidth, img.Bounds().Dx())
	assert.Equal(t, thumbHeight, img.Bounds().Dy())

	empty := ComposeThumbnail(nil)
	assert.Equal(t, thumbWidth, empty.Bounds().Dx())
}
