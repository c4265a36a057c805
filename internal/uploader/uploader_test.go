package uploader

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/database"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/repository"
)

type fakeClient struct {
	requests []UploadRequest
	failPath string
	nextID   int
}

func (c *fakeClient) Upload(_ context.Context, req UploadRequest) (string, error) {
	c.requests = append(c.requests, req)
	if req.Path == c.failPath {
		return "", assert.AnError
	}
	c.nextID++
	return req.Title, nil
}

type fakeLister struct{ paths []string }

func (l *fakeLister) ListEdited() ([]string, error) { return l.paths, nil }

func newTestService(t *testing.T, cfg config.UploaderConfig, client Client, paths []string) (*Service, *repository.UploadHistoryRepo, *events.Subscription) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	db, err := database.New(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "history.db"),
	}, logger, &repository.UploadRecord{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	history := repository.NewUploadHistoryRepo(db.DB)
	bus := events.NewBus(256, logger)
	t.Cleanup(bus.Close)
	svc := New(cfg, client, history, &fakeLister{paths: paths}, bus, logger)
	return svc, history, bus.Subscribe()
}

func TestRunUploadsPendingVideos(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	svc, history, sub := newTestService(t, config.UploaderConfig{
		PrivacyStatus: "unlisted",
		Tags:          []string{"Splatoon"},
		PlaylistID:    "PL123",
	}, client, []string{"/edited/20250101_18.mkv", "/edited/20250102_06.mkv"})

	require.NoError(t, svc.Run(ctx))
	require.Len(t, client.requests, 2)

	req := client.requests[0]
	assert.Equal(t, "2025-01-01 18時枠", req.Title)
	assert.Equal(t, PrivacyUnlisted, req.PrivacyStatus)
	assert.Equal(t, []string{"Splatoon"}, req.Tags)
	assert.Equal(t, "PL123", req.PlaylistID)

	uploaded, err := history.IsUploaded(ctx, "/edited/20250101_18.mkv")
	require.NoError(t, err)
	assert.True(t, uploaded)

	var types []string
	for _, ev := range sub.Poll(0) {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, events.TypeProgressStart)
	assert.Contains(t, types, events.TypeProgressFinish)
}

func TestRunSkipsAlreadyUploaded(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	svc, history, _ := newTestService(t, config.UploaderConfig{}, client,
		[]string{"/edited/20250101_18.mkv", "/edited/20250102_06.mkv"})

	rec := &repository.UploadRecord{
		VideoPath: "/edited/20250101_18.mkv",
		Status:    repository.UploadStatusPending,
	}
	require.NoError(t, history.Create(ctx, rec))
	require.NoError(t, history.MarkUploaded(ctx, rec.ID, "yt-1"))

	require.NoError(t, svc.Run(ctx))
	require.Len(t, client.requests, 1)
	assert.Equal(t, "/edited/20250102_06.mkv", client.requests[0].Path)
}

func TestRunRecordsFailureAndContinues(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{failPath: "/edited/20250101_18.mkv"}
	svc, history, _ := newTestService(t, config.UploaderConfig{}, client,
		[]string{"/edited/20250101_18.mkv", "/edited/20250102_06.mkv"})

	err := svc.Run(ctx)
	assert.Error(t, err)
	require.Len(t, client.requests, 2, "second video still attempted")

	rec, err := history.GetByVideoPath(ctx, "/edited/20250101_18.mkv")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, repository.UploadStatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)

	uploaded, err := history.IsUploaded(ctx, "/edited/20250102_06.mkv")
	require.NoError(t, err)
	assert.True(t, uploaded)
}

func TestRunRetriesFailedVideo(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{failPath: "/edited/20250101_18.mkv"}
	svc, history, _ := newTestService(t, config.UploaderConfig{}, client,
		[]string{"/edited/20250101_18.mkv"})

	require.Error(t, svc.Run(ctx))

	client.failPath = ""
	require.NoError(t, svc.Run(ctx))
	assert.Len(t, client.requests, 2)

	uploaded, err := history.IsUploaded(ctx, "/edited/20250101_18.mkv")
	require.NoError(t, err)
	assert.True(t, uploaded)
}

func TestRequestCancelStopsBeforeNextVideo(t *testing.T) {
	ctx := context.Background()
	client := &cancellingClient{}
	svc, _, _ := newTestService(t, config.UploaderConfig{}, client,
		[]string{"/edited/20250101_18.mkv", "/edited/20250102_06.mkv"})
	client.service = svc

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Len(t, client.requests, 1)
}

// cancellingClient requests cancel while the first upload is running.
type cancellingClient struct {
	fakeClient
	service *Service
}

func (c *cancellingClient) Upload(ctx context.Context, req UploadRequest) (string, error) {
	id, err := c.fakeClient.Upload(ctx, req)
	c.service.RequestCancel()
	return id, err
}

func TestParsePrivacyStatus(t *testing.T) {
	assert.Equal(t, PrivacyPublic, ParsePrivacyStatus("public"))
	assert.Equal(t, PrivacyUnlisted, ParsePrivacyStatus("unlisted"))
	assert.Equal(t, PrivacyPrivate, ParsePrivacyStatus(""))
	assert.Equal(t, PrivacyPrivate, ParsePrivacyStatus("bogus"))
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "2025-01-01 18時枠", titleFromPath("/edited/20250101_18.mkv"))
	assert.Equal(t, "custom", titleFromPath("/edited/custom.mkv"))
}
