package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/httpclient"
	"github.com/saw4405/splat-replay/internal/version"
)

const (
	youtubeUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"
	youtubeAPIURL    = "https://www.googleapis.com/youtube/v3"
)

// YouTubeClient uploads through the YouTube Data API v3 with a bearer
// token. Token acquisition (OAuth flow, refresh) happens outside the
// daemon; the configured credential is used as-is.
type YouTubeClient struct {
	uploadURL string
	apiURL    string
	token     string
	client    *httpclient.Client
	logger    *slog.Logger
}

// NewYouTubeClient builds the client from the uploader configuration.
func NewYouTubeClient(cfg config.UploaderConfig, logger *slog.Logger) (*YouTubeClient, error) {
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("uploader.client_secret is required")
	}
	hc := httpclient.DefaultConfig()
	hc.Timeout = 30 * time.Minute
	hc.UserAgent = version.UserAgent()
	hc.Logger = logger
	return &YouTubeClient{
		uploadURL: youtubeUploadURL,
		apiURL:    youtubeAPIURL,
		token:     cfg.ClientSecret,
		client:    httpclient.New(hc),
		logger:    logger.With("component", "youtube"),
	}, nil
}

// videoResource is the subset of the API's video resource we send.
type videoResource struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

// Upload implements Client. The video goes up as one multipart/related
// request; playlist membership is applied afterwards and failures there
// only log, the upload already succeeded.
func (c *YouTubeClient) Upload(ctx context.Context, req UploadRequest) (string, error) {
	videoID, err := c.uploadVideo(ctx, req)
	if err != nil {
		return "", err
	}
	if req.PlaylistID != "" {
		if err := c.addToPlaylist(ctx, videoID, req.PlaylistID); err != nil {
			c.logger.Warn("adding to playlist failed",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()))
		}
	}
	return videoID, nil
}

func (c *YouTubeClient) uploadVideo(ctx context.Context, req UploadRequest) (string, error) {
	video, err := os.Open(req.Path)
	if err != nil {
		return "", fmt.Errorf("opening video: %w", err)
	}
	defer video.Close()

	var resource videoResource
	resource.Snippet.Title = req.Title
	resource.Snippet.Description = req.Description
	resource.Snippet.Tags = req.Tags
	resource.Status.PrivacyStatus = string(req.PrivacyStatus)
	meta, err := json.Marshal(resource)
	if err != nil {
		return "", fmt.Errorf("rendering video resource: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("writing metadata part: %w", err)
	}
	if _, err := part.Write(meta); err != nil {
		return "", fmt.Errorf("writing metadata part: %w", err)
	}

	videoHeader := textproto.MIMEHeader{}
	videoHeader.Set("Content-Type", "video/*")
	part, err = writer.CreatePart(videoHeader)
	if err != nil {
		return "", fmt.Errorf("writing video part: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return "", fmt.Errorf("streaming video: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finishing multipart body: %w", err)
	}

	u := c.uploadURL + "?uploadType=multipart&part=snippet,status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	data, err := c.roundTrip(httpReq, "upload")
	if err != nil {
		return "", err
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("parsing upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload response carried no video id")
	}
	return result.ID, nil
}

func (c *YouTubeClient) addToPlaylist(ctx context.Context, videoID, playlistID string) error {
	payload := map[string]any{
		"snippet": map[string]any{
			"playlistId": playlistID,
			"resourceId": map[string]any{
				"kind":    "youtube#video",
				"videoId": videoID,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rendering playlist item: %w", err)
	}
	u := c.apiURL + "/playlistItems?part=snippet"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating playlist request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	_, err = c.roundTrip(req, "playlistItems")
	return err
}

func (c *YouTubeClient) roundTrip(req *http.Request, op string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned %d: %s", op, resp.StatusCode, string(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", op, err)
	}
	return data, nil
}
