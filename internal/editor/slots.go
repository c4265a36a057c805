// Package editor turns recorded battle assets into merged, narrated,
// upload-ready videos grouped by time slot.
package editor

import (
	"fmt"
	"sort"
	"time"

	"github.com/saw4405/splat-replay/internal/storage"
)

// Slot is one upload unit: the recordings that started within the same
// slot window of the same day.
type Slot struct {
	Key    string
	Start  time.Time
	Assets []storage.VideoAsset
}

// assetStart resolves when an asset's session began: metadata first,
// the filename prefix as fallback.
func assetStart(a storage.VideoAsset) (time.Time, bool) {
	if a.Metadata != nil && !a.Metadata.StartedAt.IsZero() {
		return a.Metadata.StartedAt, true
	}
	if len(a.ID) >= 15 {
		if ts, err := time.ParseInLocation("20060102_150405", a.ID[:15], time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// slotStart maps a session start to its slot boundary. Hours must be
// sorted ascending; a start before the first boundary belongs to the
// previous day's last slot.
func slotStart(ts time.Time, hours []int) time.Time {
	if len(hours) == 0 {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	}
	for i := len(hours) - 1; i >= 0; i-- {
		if ts.Hour() >= hours[i] {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), hours[i], 0, 0, 0, ts.Location())
		}
	}
	prev := ts.AddDate(0, 0, -1)
	last := hours[len(hours)-1]
	return time.Date(prev.Year(), prev.Month(), prev.Day(), last, 0, 0, 0, ts.Location())
}

// GroupIntoSlots buckets assets by slot boundary, oldest slot first,
// assets within a slot ordered by start time. Assets whose start cannot
// be resolved are skipped.
func GroupIntoSlots(assets []storage.VideoAsset, hours []int) []Slot {
	sorted := append([]int(nil), hours...)
	sort.Ints(sorted)

	byStart := make(map[time.Time][]storage.VideoAsset)
	starts := make(map[string]time.Time)
	for _, a := range assets {
		ts, ok := assetStart(a)
		if !ok {
			continue
		}
		slot := slotStart(ts, sorted)
		byStart[slot] = append(byStart[slot], a)
		starts[a.ID] = ts
	}

	slots := make([]Slot, 0, len(byStart))
	for start, group := range byStart {
		sort.Slice(group, func(i, j int) bool {
			return starts[group[i].ID].Before(starts[group[j].ID])
		})
		slots = append(slots, Slot{
			Key:    fmt.Sprintf("%s_%02d", start.Format("20060102"), start.Hour()),
			Start:  start,
			Assets: group,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}
