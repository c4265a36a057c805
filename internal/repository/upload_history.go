// Package repository holds the GORM repositories backing the upload
// pipeline.
package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// UploadStatus tracks one upload attempt's lifecycle.
type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusUploaded UploadStatus = "uploaded"
	UploadStatusFailed   UploadStatus = "failed"
)

// UploadRecord is one edited video's upload history row.
type UploadRecord struct {
	ID         uint         `gorm:"primaryKey"`
	VideoPath  string       `gorm:"uniqueIndex;not null"`
	Title      string       `gorm:"not null"`
	VideoID    string       `gorm:"index"`
	Status     UploadStatus `gorm:"index;not null"`
	Error      string
	UploadedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UploadHistoryRepo persists upload records.
type UploadHistoryRepo struct {
	db *gorm.DB
}

// NewUploadHistoryRepo builds the repository.
func NewUploadHistoryRepo(db *gorm.DB) *UploadHistoryRepo {
	return &UploadHistoryRepo{db: db}
}

// Create inserts a new record.
func (r *UploadHistoryRepo) Create(ctx context.Context, rec *UploadRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("creating upload record: %w", err)
	}
	return nil
}

// GetByVideoPath retrieves the record for a video; nil when absent.
func (r *UploadHistoryRepo) GetByVideoPath(ctx context.Context, path string) (*UploadRecord, error) {
	var rec UploadRecord
	if err := r.db.WithContext(ctx).Where("video_path = ?", path).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting upload record: %w", err)
	}
	return &rec, nil
}

// List returns all records, newest first.
func (r *UploadHistoryRepo) List(ctx context.Context) ([]*UploadRecord, error) {
	var recs []*UploadRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing upload records: %w", err)
	}
	return recs, nil
}

// MarkUploaded records a successful upload.
func (r *UploadHistoryRepo) MarkUploaded(ctx context.Context, id uint, videoID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&UploadRecord{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":      UploadStatusUploaded,
			"video_id":    videoID,
			"error":       "",
			"uploaded_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("marking upload record uploaded: %w", err)
	}
	return nil
}

// MarkFailed records a failed upload attempt.
func (r *UploadHistoryRepo) MarkFailed(ctx context.Context, id uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	err := r.db.WithContext(ctx).Model(&UploadRecord{}).Where("id = ?", id).
		Updates(map[string]any{
			"status": UploadStatusFailed,
			"error":  msg,
		}).Error
	if err != nil {
		return fmt.Errorf("marking upload record failed: %w", err)
	}
	return nil
}

// IsUploaded reports whether a video already went out.
func (r *UploadHistoryRepo) IsUploaded(ctx context.Context, path string) (bool, error) {
	rec, err := r.GetByVideoPath(ctx, path)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Status == UploadStatusUploaded, nil
}
