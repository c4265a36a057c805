package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/storage"
)

func slotAsset(id string, startedAt time.Time) storage.VideoAsset {
	return storage.VideoAsset{
		ID:        id,
		VideoPath: "/recorded/" + id + ".mkv",
		Metadata:  models.NewRecordingMetadata(models.GameModeBattle, startedAt),
	}
}

func TestSlotStart(t *testing.T) {
	hours := []int{6, 12, 18}
	tests := []struct {
		at   time.Time
		want time.Time
	}{
		{
			time.Date(2025, 1, 1, 18, 30, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2025, 1, 1, 11, 59, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC),
		},
		{
			// Before the first boundary: previous day's last slot.
			time.Date(2025, 1, 2, 2, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slotStart(tt.at, hours), tt.at.String())
	}
}

func TestSlotStartWithoutBoundaries(t *testing.T) {
	at := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), slotStart(at, nil))
}

func TestGroupIntoSlots(t *testing.T) {
	assets := []storage.VideoAsset{
		slotAsset("b", time.Date(2025, 1, 1, 18, 45, 0, 0, time.UTC)),
		slotAsset("a", time.Date(2025, 1, 1, 18, 10, 0, 0, time.UTC)),
		slotAsset("c", time.Date(2025, 1, 1, 19, 30, 0, 0, time.UTC)),
		slotAsset("d", time.Date(2025, 1, 2, 6, 5, 0, 0, time.UTC)),
	}
	slots := GroupIntoSlots(assets, []int{6, 12, 18})
	require.Len(t, slots, 2)

	assert.Equal(t, "20250101_18", slots[0].Key)
	require.Len(t, slots[0].Assets, 3)
	assert.Equal(t, "a", slots[0].Assets[0].ID)
	assert.Equal(t, "b", slots[0].Assets[1].ID)
	assert.Equal(t, "c", slots[0].Assets[2].ID)

	assert.Equal(t, "20250102_06", slots[1].Key)
}

func TestGroupIntoSlotsFallsBackToFilename(t *testing.T) {
	assets := []storage.VideoAsset{
		{ID: "20250101_181000", VideoPath: "/recorded/20250101_181000.mkv"},
		{ID: "bogus", VideoPath: "/recorded/bogus.mkv"},
	}
	slots := GroupIntoSlots(assets, []int{18})
	require.Len(t, slots, 1)
	assert.Len(t, slots[0].Assets, 1, "unparseable asset is skipped")
}
