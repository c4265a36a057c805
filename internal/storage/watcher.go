package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/saw4405/splat-replay/internal/events"
)

// Watcher publishes asset events for files changed outside the daemon,
// so external edits to the recorded and edited directories show up on
// the bus like the daemon's own.
type Watcher struct {
	recordedDir string
	editedDir   string
	bus         *events.Bus
	logger      *slog.Logger
}

// NewWatcher builds a watcher over the repository's two roots.
func NewWatcher(repo *Repository, bus *events.Bus, logger *slog.Logger) *Watcher {
	return &Watcher{
		recordedDir: repo.RecordedDir(),
		editedDir:   repo.EditedDir(),
		bus:         bus,
		logger:      logger.With("component", "storage.watcher"),
	}
}

// Run watches until the context ends. Both directories must exist.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range []string{w.recordedDir, w.editedDir} {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	dir := filepath.Dir(ev.Name)
	name := filepath.Base(ev.Name)
	edited := dir == filepath.Clean(w.editedDir)

	id := strings.TrimSuffix(name, filepath.Ext(name))
	payload := map[string]any{"id": id}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		if !strings.HasSuffix(name, videoExt) {
			return
		}
		if edited {
			w.bus.Publish(events.TypeAssetEditedDeleted, payload)
		} else {
			w.bus.Publish(events.TypeAssetRecordedDeleted, payload)
		}
	case ev.Op.Has(fsnotify.Create):
		if !strings.HasSuffix(name, videoExt) {
			return
		}
		payload["path"] = ev.Name
		if edited {
			w.bus.Publish(events.TypeAssetEditedSaved, payload)
		} else {
			w.bus.Publish(events.TypeAssetRecordedSaved, payload)
		}
	case ev.Op.Has(fsnotify.Write):
		if edited {
			return
		}
		switch filepath.Ext(name) {
		case ".json":
			w.bus.Publish(events.TypeAssetRecordedMetadataUpdated, payload)
		case ".srt":
			w.bus.Publish(events.TypeAssetRecordedSubtitleUpdated, payload)
		}
	}
}
