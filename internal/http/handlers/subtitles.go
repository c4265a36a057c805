package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/saw4405/splat-replay/internal/subtitle"
)

// SubtitleStore is the repository surface the subtitle handler needs.
type SubtitleStore interface {
	Subtitle(id string) (string, error)
	SetSubtitle(id, text string) error
}

// SubtitlesHandler exposes the per-recording SRT side channel.
type SubtitlesHandler struct {
	store SubtitleStore
}

// NewSubtitlesHandler creates a new subtitles handler.
func NewSubtitlesHandler(store SubtitleStore) *SubtitlesHandler {
	return &SubtitlesHandler{store: store}
}

// SubtitleBody carries SRT text.
type SubtitleBody struct {
	Subtitle string `json:"subtitle" doc:"SRT subtitle text"`
}

// GetSubtitleInput identifies the recording.
type GetSubtitleInput struct {
	ID string `path:"id" doc:"Recorded asset id"`
}

// GetSubtitleOutput returns the stored SRT text.
type GetSubtitleOutput struct {
	Body SubtitleBody
}

// PutSubtitleInput carries the replacement SRT text.
type PutSubtitleInput struct {
	ID   string `path:"id" doc:"Recorded asset id"`
	Body SubtitleBody
}

// PutSubtitleOutput echoes the stored text.
type PutSubtitleOutput struct {
	Body SubtitleBody
}

// Register registers the subtitle routes with the API.
func (h *SubtitlesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getRecordedSubtitle",
		Method:      http.MethodGet,
		Path:        "/subtitles/recorded/{id}",
		Summary:     "Get a recording's subtitle",
		Tags:        []string{"Subtitles"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "putRecordedSubtitle",
		Method:      http.MethodPut,
		Path:        "/subtitles/recorded/{id}",
		Summary:     "Replace a recording's subtitle",
		Tags:        []string{"Subtitles"},
	}, h.Put)
}

// Get returns the recording's SRT text, empty when none exists.
func (h *SubtitlesHandler) Get(_ context.Context, input *GetSubtitleInput) (*GetSubtitleOutput, error) {
	text, err := h.store.Subtitle(input.ID)
	if err != nil {
		return nil, assetError(err)
	}
	return &GetSubtitleOutput{Body: SubtitleBody{Subtitle: text}}, nil
}

// Put validates and stores the replacement SRT text.
func (h *SubtitlesHandler) Put(_ context.Context, input *PutSubtitleInput) (*PutSubtitleOutput, error) {
	if input.Body.Subtitle != "" {
		if _, err := subtitle.Parse(input.Body.Subtitle); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
	}
	if err := h.store.SetSubtitle(input.ID, input.Body.Subtitle); err != nil {
		return nil, assetError(err)
	}
	return &PutSubtitleOutput{Body: input.Body}, nil
}
