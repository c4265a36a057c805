package handlers

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
	"github.com/saw4405/splat-replay/internal/storage"
)

func newTestStore(t *testing.T) *storage.Repository {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bus := events.NewBus(64, logger)
	t.Cleanup(bus.Close)
	return storage.NewRepository(config.StorageConfig{
		RecordedDir: filepath.Join(t.TempDir(), "recorded"),
		EditedDir:   filepath.Join(t.TempDir(), "edited"),
	}, bus, logger)
}

func writeRecording(t *testing.T, store *storage.Repository, startedAt time.Time) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "capture.mkv")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	meta := models.NewRecordingMetadata(models.GameModeBattle, startedAt)
	saved, err := store.SaveRecording(context.Background(), src, "", nil, meta)
	require.NoError(t, err)
	base := filepath.Base(saved)
	return base[:len(base)-len(filepath.Ext(base))]
}

func TestAssetsListRecorded(t *testing.T) {
	store := newTestStore(t)
	id := writeRecording(t, store, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	h := NewAssetsHandler(store)

	out, err := h.ListRecorded(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, out.Body.Assets, 1)
	assert.Equal(t, id, out.Body.Assets[0].ID)
	require.NotNil(t, out.Body.Assets[0].Metadata)
	assert.Equal(t, "battle", out.Body.Assets[0].Metadata.GameMode)
}

func TestAssetsUpdateMetadata(t *testing.T) {
	store := newTestStore(t)
	id := writeRecording(t, store, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	h := NewAssetsHandler(store)

	sc := models.NewRecordingMetadata(models.GameModeBattle,
		time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)).ToSidecar()
	win := "WIN"
	sc.Judgement = &win

	out, err := h.UpdateMetadata(context.Background(), &UpdateMetadataInput{ID: id, Body: sc})
	require.NoError(t, err)
	require.NotNil(t, out.Body.Judgement)
	assert.Equal(t, "WIN", *out.Body.Judgement)

	asset, err := store.GetRecording(id)
	require.NoError(t, err)
	require.NotNil(t, asset.Metadata)
	assert.Equal(t, models.JudgementWin, asset.Metadata.Judgement)
}

func TestAssetsUpdateMetadataRejectsBadSidecar(t *testing.T) {
	store := newTestStore(t)
	id := writeRecording(t, store, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	h := NewAssetsHandler(store)

	_, err := h.UpdateMetadata(context.Background(), &UpdateMetadataInput{
		ID:   id,
		Body: models.Sidecar{GameMode: "bogus", StartedAt: "2025-01-01T12:00:00Z"},
	})
	assert.Error(t, err)
}

func TestAssetsUpdateMetadataUnknownID(t *testing.T) {
	h := NewAssetsHandler(newTestStore(t))
	_, err := h.UpdateMetadata(context.Background(), &UpdateMetadataInput{
		ID:   "missing",
		Body: models.Sidecar{GameMode: "battle", StartedAt: "2025-01-01T12:00:00Z"},
	})
	assert.Error(t, err)
}

func TestAssetsDeleteRecorded(t *testing.T) {
	store := newTestStore(t)
	id := writeRecording(t, store, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	h := NewAssetsHandler(store)

	_, err := h.DeleteRecorded(context.Background(), &AssetIDInput{ID: id})
	require.NoError(t, err)

	out, err := h.ListRecorded(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Body.Assets)

	_, err = h.DeleteRecorded(context.Background(), &AssetIDInput{ID: id})
	assert.Error(t, err)
}

func TestAssetsEditedLifecycle(t *testing.T) {
	store := newTestStore(t)
	h := NewAssetsHandler(store)

	src := filepath.Join(t.TempDir(), "20250101_18.mkv")
	require.NoError(t, os.WriteFile(src, []byte("edited"), 0o644))
	_, err := store.SaveEdited(context.Background(), src)
	require.NoError(t, err)

	out, err := h.ListEdited(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, out.Body.Assets, 1)
	assert.Equal(t, "20250101_18", out.Body.Assets[0].ID)

	_, err = h.DeleteEdited(context.Background(), &AssetIDInput{ID: "20250101_18"})
	require.NoError(t, err)

	out, err = h.ListEdited(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Body.Assets)
}
