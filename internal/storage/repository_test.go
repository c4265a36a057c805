package storage

import (
	"context"
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
	"github.com/saw4405/splat-replay/internal/vision"
)

func newTestRepo(t *testing.T) (*Repository, *events.Subscription) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bus := events.NewBus(64, logger)
	t.Cleanup(bus.Close)

	cfg := config.StorageConfig{
		RecordedDir: filepath.Join(t.TempDir(), "recorded"),
		EditedDir:   filepath.Join(t.TempDir(), "edited"),
	}
	return NewRepository(cfg, bus, logger), bus.Subscribe()
}

func battleMetadata(t *testing.T) *models.RecordingMetadata {
	t.Helper()
	meta := models.NewRecordingMetadata(models.GameModeBattle,
		time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	meta.Judgement = models.JudgementWin
	meta.Result = models.Result{Battle: &models.BattleResult{
		Match: models.MatchXMatch,
		Rule:  models.RuleRainmaker,
		Stage: models.StageScorchGorge,
		Kill:  10, Death: 2, Special: 4,
	}}
	return meta
}

func stageVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))
	return path
}

func TestSaveRecordingWritesAllFour(t *testing.T) {
	repo, _ := newTestRepo(t)
	meta := battleMetadata(t)
	video := stageVideo(t, "raw.mkv")
	shot := vision.NewUniformFrame(4, 4, 10, 20, 30)

	path, err := repo.SaveRecording(context.Background(), video,
		"1\n00:00:01,000 --> 00:00:02,000\nnice\n", shot, meta)
	require.NoError(t, err)

	base := "20250101_120000_Xマッチ_ガチホコ_WIN_ユノハナ大渓谷"
	assert.Equal(t, filepath.Join(repo.RecordedDir(), base+".mkv"), path)
	for _, ext := range []string{".mkv", ".srt", ".png", ".json"} {
		assert.FileExists(t, filepath.Join(repo.RecordedDir(), base+ext), ext)
	}
	assert.NoFileExists(t, video, "video must be moved, not copied")
}

func TestSaveRecordingWithoutSidecars(t *testing.T) {
	repo, _ := newTestRepo(t)
	meta := models.NewRecordingMetadata(models.GameModeSalmon,
		time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC))
	video := stageVideo(t, "raw.mkv")

	path, err := repo.SaveRecording(context.Background(), video, "", nil, meta)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repo.RecordedDir(), "20250203_040506.mkv"), path)
	assert.NoFileExists(t, filepath.Join(repo.RecordedDir(), "20250203_040506.srt"))
	assert.NoFileExists(t, filepath.Join(repo.RecordedDir(), "20250203_040506.png"))
}

func TestListRecordingsLoadsSidecarsOpportunistically(t *testing.T) {
	repo, _ := newTestRepo(t)
	meta := battleMetadata(t)
	_, err := repo.SaveRecording(context.Background(), stageVideo(t, "a.mkv"),
		"subs", nil, meta)
	require.NoError(t, err)

	// A bare video dropped in by hand is still listed.
	bare := filepath.Join(repo.RecordedDir(), "20250101_130000.mkv")
	require.NoError(t, os.WriteFile(bare, []byte("x"), 0o644))

	assets, err := repo.ListRecordings()
	require.NoError(t, err)
	require.Len(t, assets, 2)

	// Ascending ID order: the 12:00 recording sorts before the 13:00
	// bare video.
	full, bareAsset := assets[0], assets[1]
	require.NotNil(t, full.Metadata)
	assert.Equal(t, models.JudgementWin, full.Metadata.Judgement)
	assert.NotEmpty(t, full.SubtitlePath)

	assert.Nil(t, bareAsset.Metadata)
	assert.Empty(t, bareAsset.SubtitlePath)
	assert.NotEmpty(t, bareAsset.VideoPath)
}

func TestListRecordingsEmptyDir(t *testing.T) {
	repo, _ := newTestRepo(t)
	assets, err := repo.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestCorruptSidecarLeavesMetadataNil(t *testing.T) {
	repo, _ := newTestRepo(t)
	require.NoError(t, os.MkdirAll(repo.RecordedDir(), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(repo.RecordedDir(), "20250101_120000.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(repo.RecordedDir(), "20250101_120000.json"), []byte("{not json"), 0o644))

	assets, err := repo.ListRecordings()
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Nil(t, assets[0].Metadata)
	assert.NotEmpty(t, assets[0].MetadataPath)
}

func TestDeleteRecordingRemovesAllFour(t *testing.T) {
	repo, sub := newTestRepo(t)
	meta := battleMetadata(t)
	_, err := repo.SaveRecording(context.Background(), stageVideo(t, "a.mkv"),
		"subs", vision.NewUniformFrame(2, 2, 0, 0, 0), meta)
	require.NoError(t, err)
	sub.Poll(0)

	id := meta.BaseName()
	require.NoError(t, repo.DeleteRecording(id))

	assets, err := repo.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, assets)
	entries, err := os.ReadDir(repo.RecordedDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "no orphan sidecars may remain")

	polled := sub.Poll(0)
	require.Len(t, polled, 1)
	assert.Equal(t, events.TypeAssetRecordedDeleted, polled[0].Type)
	assert.Equal(t, id, polled[0].Payload["id"])
}

func TestDeleteRecordingUnknownID(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.DeleteRecording("nope")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestUpdateMetadataPublishes(t *testing.T) {
	repo, sub := newTestRepo(t)
	meta := battleMetadata(t)
	_, err := repo.SaveRecording(context.Background(), stageVideo(t, "a.mkv"), "", nil, meta)
	require.NoError(t, err)
	sub.Poll(0)

	id := meta.BaseName()
	meta.Judgement = models.JudgementLose
	require.NoError(t, repo.UpdateMetadata(id, meta))

	asset, err := repo.GetRecording(id)
	require.NoError(t, err)
	require.NotNil(t, asset.Metadata)
	assert.Equal(t, models.JudgementLose, asset.Metadata.Judgement)

	polled := sub.Poll(0)
	require.Len(t, polled, 1)
	assert.Equal(t, events.TypeAssetRecordedMetadataUpdated, polled[0].Type)
}

func TestSubtitleRoundTrip(t *testing.T) {
	repo, sub := newTestRepo(t)
	meta := battleMetadata(t)
	_, err := repo.SaveRecording(context.Background(), stageVideo(t, "a.mkv"), "", nil, meta)
	require.NoError(t, err)
	sub.Poll(0)

	id := meta.BaseName()
	text, err := repo.Subtitle(id)
	require.NoError(t, err)
	assert.Empty(t, text)

	srt := "1\n00:00:01,000 --> 00:00:02,000\nやったー\n"
	require.NoError(t, repo.SetSubtitle(id, srt))

	text, err = repo.Subtitle(id)
	require.NoError(t, err)
	assert.Equal(t, srt, text)

	polled := sub.Poll(0)
	require.Len(t, polled, 1)
	assert.Equal(t, events.TypeAssetRecordedSubtitleUpdated, polled[0].Type)
}

func TestEditedLifecycle(t *testing.T) {
	repo, sub := newTestRepo(t)

	src := stageVideo(t, "merged.mkv")
	dest, err := repo.SaveEdited(context.Background(), src)
	require.NoError(t, err)
	assert.FileExists(t, dest)

	paths, err := repo.ListEdited()
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, paths)

	require.NoError(t, repo.DeleteEdited("merged.mkv"))
	paths, err = repo.ListEdited()
	require.NoError(t, err)
	assert.Empty(t, paths)

	var types []string
	for _, ev := range sub.Poll(0) {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{events.TypeAssetEditedSaved, events.TypeAssetEditedDeleted}, types)
}

func TestMoveFileFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, moveFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NoFileExists(t, src)
}
