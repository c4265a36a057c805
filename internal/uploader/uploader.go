// Package uploader publishes edited videos through an external upload
// client, keeping history so a video never goes out twice.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/repository"
)

// ErrCancelled is returned when a cancel request lands between videos.
var ErrCancelled = errors.New("upload cancelled")

// PrivacyStatus is the upload visibility.
type PrivacyStatus string

const (
	PrivacyPrivate  PrivacyStatus = "private"
	PrivacyUnlisted PrivacyStatus = "unlisted"
	PrivacyPublic   PrivacyStatus = "public"
)

// ParsePrivacyStatus validates a configured status, defaulting to
// private.
func ParsePrivacyStatus(s string) PrivacyStatus {
	switch PrivacyStatus(s) {
	case PrivacyUnlisted, PrivacyPublic:
		return PrivacyStatus(s)
	default:
		return PrivacyPrivate
	}
}

// UploadRequest carries everything the external client needs.
type UploadRequest struct {
	Path          string
	Title         string
	Description   string
	Tags          []string
	PrivacyStatus PrivacyStatus
	ThumbnailPath string
	CaptionPath   string
	PlaylistID    string
}

// Client is the external upload collaborator.
type Client interface {
	// Upload sends one video and returns its remote id.
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// History is the persistence surface the service needs.
type History interface {
	Create(ctx context.Context, rec *repository.UploadRecord) error
	GetByVideoPath(ctx context.Context, path string) (*repository.UploadRecord, error)
	MarkUploaded(ctx context.Context, id uint, videoID string) error
	MarkFailed(ctx context.Context, id uint, cause error) error
}

// EditedLister yields the videos awaiting upload.
type EditedLister interface {
	ListEdited() ([]string, error)
}

// Service walks the edited directory and uploads what history has not
// seen succeed.
type Service struct {
	cfg     config.UploaderConfig
	client  Client
	history History
	store   EditedLister
	bus     *events.Bus
	logger  *slog.Logger

	cancelled atomic.Bool
}

// New builds the service.
func New(cfg config.UploaderConfig, client Client, history History,
	store EditedLister, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		client:  client,
		history: history,
		store:   store,
		bus:     bus,
		logger:  logger.With("component", "uploader"),
	}
}

// RequestCancel aborts the run before the next video.
func (s *Service) RequestCancel() { s.cancelled.Store(true) }

// Run uploads every pending edited video. Per-video failures are
// recorded and the run continues.
func (s *Service) Run(ctx context.Context) error {
	s.cancelled.Store(false)

	paths, err := s.store.ListEdited()
	if err != nil {
		return fmt.Errorf("listing edited videos: %w", err)
	}
	pending, err := s.filterPending(ctx, paths)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		s.logger.Info("nothing to upload")
		return nil
	}

	progress := events.NewProgressReporter(s.bus, "auto-upload", "自動アップロード")
	progress.Total(len(pending))
	keys := make([]string, len(pending))
	for i, p := range pending {
		keys[i] = filepath.Base(p)
	}
	progress.Items(keys)

	var firstErr error
	for i, path := range pending {
		if s.cancelled.Load() {
			progress.Finish(false, "cancelled")
			return ErrCancelled
		}
		key := filepath.Base(path)
		progress.ItemStage(i, key, "アップロード中")
		if err := s.uploadOne(ctx, path); err != nil {
			s.logger.Error("upload failed",
				slog.String("video", key),
				slog.String("error", err.Error()))
			progress.ItemFinish(i, key, false, err.Error())
			if firstErr == nil {
				firstErr = err
			}
		} else {
			progress.ItemFinish(i, key, true, "")
		}
		progress.Advance(i + 1)
	}
	progress.Finish(firstErr == nil, "")
	return firstErr
}

func (s *Service) filterPending(ctx context.Context, paths []string) ([]string, error) {
	var pending []string
	for _, path := range paths {
		rec, err := s.history.GetByVideoPath(ctx, path)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Status == repository.UploadStatusUploaded {
			continue
		}
		pending = append(pending, path)
	}
	return pending, nil
}

func (s *Service) uploadOne(ctx context.Context, path string) error {
	title := titleFromPath(path)
	rec, err := s.history.GetByVideoPath(ctx, path)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &repository.UploadRecord{
			VideoPath: path,
			Title:     title,
			Status:    repository.UploadStatusPending,
		}
		if err := s.history.Create(ctx, rec); err != nil {
			return err
		}
	}

	req := UploadRequest{
		Path:          path,
		Title:         title,
		Description:   descriptionFor(title),
		Tags:          s.cfg.Tags,
		PrivacyStatus: ParsePrivacyStatus(s.cfg.PrivacyStatus),
		PlaylistID:    s.cfg.PlaylistID,
	}
	videoID, err := s.client.Upload(ctx, req)
	if err != nil {
		if histErr := s.history.MarkFailed(ctx, rec.ID, err); histErr != nil {
			s.logger.Warn("recording failure failed", slog.String("error", histErr.Error()))
		}
		return err
	}
	if err := s.history.MarkUploaded(ctx, rec.ID, videoID); err != nil {
		return err
	}
	s.logger.Info("video uploaded",
		slog.String("video", filepath.Base(path)),
		slog.String("video_id", videoID))
	return nil
}

// titleFromPath renders the slot filename (20250101_18.mkv) as a
// human title.
func titleFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ts, err := time.ParseInLocation("20060102_15", base, time.Local); err == nil {
		return ts.Format("2006-01-02 15時枠")
	}
	return base
}

func descriptionFor(title string) string {
	return title + " の録画です。splat-replay による自動編集・自動アップロード。"
}
