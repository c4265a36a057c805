// Package storage is the on-disk asset repository: each completed
// recording becomes a video plus up to three sidecars sharing its base
// name, rooted under the recorded and edited directories.
package storage

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
)

const videoExt = ".mkv"

// ErrAssetNotFound is returned when no video exists for the given id.
var ErrAssetNotFound = errors.New("asset not found")

// VideoAsset is one recording on disk. The video is required; sidecar
// paths are empty when the file is absent.
type VideoAsset struct {
	ID            string
	VideoPath     string
	SubtitlePath  string
	ThumbnailPath string
	MetadataPath  string
	Metadata      *models.RecordingMetadata
}

// Repository owns the recorded and edited directories.
type Repository struct {
	cfg    config.StorageConfig
	bus    *events.Bus
	logger *slog.Logger
}

// NewRepository builds the repository; directories are created lazily
// on first save.
func NewRepository(cfg config.StorageConfig, bus *events.Bus, logger *slog.Logger) *Repository {
	return &Repository{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("component", "storage"),
	}
}

// RecordedDir returns the recorded asset root.
func (r *Repository) RecordedDir() string { return r.cfg.RecordedDir }

// EditedDir returns the edited asset root.
func (r *Repository) EditedDir() string { return r.cfg.EditedDir }

// SaveRecording persists a finished recording. The video is written
// first so a listed asset always has one; sidecar failures are logged
// and do not fail the save.
func (r *Repository) SaveRecording(_ context.Context, videoPath, subtitle string,
	screenshot *vision.Frame, meta *models.RecordingMetadata) (string, error) {

	if err := os.MkdirAll(r.cfg.RecordedDir, 0o755); err != nil {
		return "", fmt.Errorf("creating recorded dir: %w", err)
	}

	base := meta.BaseName()
	dest := filepath.Join(r.cfg.RecordedDir, base+filepath.Ext(videoPath))
	finalPath := dest
	if err := moveFile(videoPath, dest); err != nil {
		r.logger.Warn("video move failed, keeping source path",
			slog.String("source", videoPath),
			slog.String("error", err.Error()))
		finalPath = videoPath
	}

	if screenshot != nil {
		if err := writeFramePNG(r.sidecarPath(base, ".png"), screenshot); err != nil {
			r.logger.Warn("thumbnail write failed", slog.String("error", err.Error()))
		}
	}
	if subtitle != "" {
		if err := os.WriteFile(r.sidecarPath(base, ".srt"), []byte(subtitle), 0o644); err != nil {
			r.logger.Warn("subtitle write failed", slog.String("error", err.Error()))
		}
	}
	data, err := meta.MarshalSidecar()
	if err == nil {
		err = os.WriteFile(r.sidecarPath(base, ".json"), data, 0o644)
	}
	if err != nil {
		r.logger.Warn("metadata sidecar write failed", slog.String("error", err.Error()))
	}

	r.logger.Info("recording saved",
		slog.String("id", base),
		slog.String("path", finalPath))
	return finalPath, nil
}

// SaveEdited moves a finished edit into the edited directory and
// publishes the saved event.
func (r *Repository) SaveEdited(_ context.Context, videoPath string) (string, error) {
	if err := os.MkdirAll(r.cfg.EditedDir, 0o755); err != nil {
		return "", fmt.Errorf("creating edited dir: %w", err)
	}
	dest := filepath.Join(r.cfg.EditedDir, filepath.Base(videoPath))
	if err := moveFile(videoPath, dest); err != nil {
		return "", fmt.Errorf("moving edited video: %w", err)
	}
	r.publish(events.TypeAssetEditedSaved, map[string]any{"path": dest})
	return dest, nil
}

// ListRecordings returns one asset per video in the recorded
// directory, sorted by id. Sidecars are loaded opportunistically; a
// corrupt metadata sidecar leaves Metadata nil.
func (r *Repository) ListRecordings() ([]VideoAsset, error) {
	entries, err := os.ReadDir(r.cfg.RecordedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recorded dir: %w", err)
	}

	var assets []VideoAsset
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), videoExt) {
			continue
		}
		assets = append(assets, r.loadAsset(strings.TrimSuffix(e.Name(), videoExt)))
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

// ListEdited returns the video paths in the edited directory.
func (r *Repository) ListEdited() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.EditedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading edited dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), videoExt) {
			continue
		}
		paths = append(paths, filepath.Join(r.cfg.EditedDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// GetRecording loads one asset by id.
func (r *Repository) GetRecording(id string) (VideoAsset, error) {
	asset := r.loadAsset(id)
	if asset.VideoPath == "" {
		return VideoAsset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return asset, nil
}

// DeleteRecording removes the video and every sidecar.
func (r *Repository) DeleteRecording(id string) error {
	asset := r.loadAsset(id)
	if asset.VideoPath == "" {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	for _, path := range []string{asset.VideoPath, asset.SubtitlePath, asset.ThumbnailPath, asset.MetadataPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting %s: %w", path, err)
		}
	}
	r.publish(events.TypeAssetRecordedDeleted, map[string]any{"id": id})
	return nil
}

// DeleteEdited removes one edited video by file name or bare id.
func (r *Repository) DeleteEdited(name string) error {
	name = filepath.Base(name)
	if filepath.Ext(name) == "" {
		name += videoExt
	}
	path := filepath.Join(r.cfg.EditedDir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	r.publish(events.TypeAssetEditedDeleted, map[string]any{"id": filepath.Base(name)})
	return nil
}

// UpdateMetadata rewrites the metadata sidecar for an existing asset.
func (r *Repository) UpdateMetadata(id string, meta *models.RecordingMetadata) error {
	if _, err := r.GetRecording(id); err != nil {
		return err
	}
	data, err := meta.MarshalSidecar()
	if err != nil {
		return fmt.Errorf("rendering sidecar: %w", err)
	}
	if err := os.WriteFile(r.sidecarPath(id, ".json"), data, 0o644); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	r.publish(events.TypeAssetRecordedMetadataUpdated, map[string]any{
		"id":       id,
		"metadata": meta.ToSidecar(),
	})
	return nil
}

// Subtitle returns the asset's SRT text, empty when absent.
func (r *Repository) Subtitle(id string) (string, error) {
	if _, err := r.GetRecording(id); err != nil {
		return "", err
	}
	data, err := os.ReadFile(r.sidecarPath(id, ".srt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading subtitle: %w", err)
	}
	return string(data), nil
}

// SetSubtitle replaces the asset's SRT text.
func (r *Repository) SetSubtitle(id, text string) error {
	if _, err := r.GetRecording(id); err != nil {
		return err
	}
	if err := os.WriteFile(r.sidecarPath(id, ".srt"), []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing subtitle: %w", err)
	}
	r.publish(events.TypeAssetRecordedSubtitleUpdated, map[string]any{"id": id})
	return nil
}

func (r *Repository) loadAsset(id string) VideoAsset {
	asset := VideoAsset{ID: id}

	video := filepath.Join(r.cfg.RecordedDir, id+videoExt)
	if fileExists(video) {
		asset.VideoPath = video
	}
	if p := r.sidecarPath(id, ".srt"); fileExists(p) {
		asset.SubtitlePath = p
	}
	if p := r.sidecarPath(id, ".png"); fileExists(p) {
		asset.ThumbnailPath = p
	}
	if p := r.sidecarPath(id, ".json"); fileExists(p) {
		asset.MetadataPath = p
		data, err := os.ReadFile(p)
		if err == nil {
			meta, err := models.UnmarshalSidecar(data)
			if err != nil {
				r.logger.Warn("metadata sidecar unreadable",
					slog.String("id", id), slog.String("error", err.Error()))
			} else {
				asset.Metadata = meta
			}
		}
	}
	return asset
}

func (r *Repository) sidecarPath(id, ext string) string {
	return filepath.Join(r.cfg.RecordedDir, id+ext)
}

func (r *Repository) publish(eventType string, payload map[string]any) {
	if r.bus != nil {
		r.bus.Publish(eventType, payload)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func writeFramePNG(path string, f *vision.Frame) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	return png.Encode(fh, f.Image())
}
