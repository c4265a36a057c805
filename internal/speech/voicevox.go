package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/httpclient"
)

// VoicevoxEngine speaks through a VOICEVOX-compatible HTTP engine:
// audio_query builds the synthesis request, synthesis renders WAV.
type VoicevoxEngine struct {
	baseURL string
	speaker int
	client  *httpclient.Client
	logger  *slog.Logger
}

// NewVoicevoxEngine builds the adapter.
func NewVoicevoxEngine(cfg config.SpeechConfig, logger *slog.Logger) (*VoicevoxEngine, error) {
	if cfg.EngineURL == "" {
		return nil, fmt.Errorf("speech.engine_url is required")
	}
	if _, err := url.Parse(cfg.EngineURL); err != nil {
		return nil, fmt.Errorf("speech.engine_url: %w", err)
	}
	hc := httpclient.DefaultConfig()
	hc.Timeout = 60 * time.Second
	hc.Logger = logger
	return &VoicevoxEngine{
		baseURL: cfg.EngineURL,
		speaker: cfg.SpeakerID,
		client:  httpclient.New(hc),
		logger:  logger.With("component", "speech"),
	}, nil
}

// Synthesize implements Synthesizer.
func (e *VoicevoxEngine) Synthesize(ctx context.Context, text string) (*Audio, error) {
	query, err := e.audioQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	wav, err := e.synthesis(ctx, query)
	if err != nil {
		return nil, err
	}
	audio, err := decodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decoding engine output: %w", err)
	}
	e.logger.Debug("synthesized narration",
		slog.Int("text_len", len(text)),
		slog.Int("sample_rate", audio.SampleRate))
	return audio, nil
}

func (e *VoicevoxEngine) audioQuery(ctx context.Context, text string) ([]byte, error) {
	u := fmt.Sprintf("%s/audio_query?text=%s&speaker=%s",
		e.baseURL, url.QueryEscape(text), strconv.Itoa(e.speaker))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating audio_query request: %w", err)
	}
	return e.roundTrip(req, "audio_query")
}

func (e *VoicevoxEngine) synthesis(ctx context.Context, query []byte) ([]byte, error) {
	u := fmt.Sprintf("%s/synthesis?speaker=%s", e.baseURL, strconv.Itoa(e.speaker))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("creating synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.roundTrip(req, "synthesis")
}

func (e *VoicevoxEngine) roundTrip(req *http.Request, op string) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned %d: %s", op, resp.StatusCode, string(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", op, err)
	}
	return data, nil
}
