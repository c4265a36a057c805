package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/storage"
)

// AssetStore is the repository surface the asset handlers need.
type AssetStore interface {
	ListRecordings() ([]storage.VideoAsset, error)
	ListEdited() ([]string, error)
	GetRecording(id string) (storage.VideoAsset, error)
	DeleteRecording(id string) error
	DeleteEdited(name string) error
	UpdateMetadata(id string, meta *models.RecordingMetadata) error
}

// AssetsHandler exposes the recorded/edited asset listings.
type AssetsHandler struct {
	store AssetStore
}

// NewAssetsHandler creates a new assets handler.
func NewAssetsHandler(store AssetStore) *AssetsHandler {
	return &AssetsHandler{store: store}
}

// RecordedAssetResponse is one recorded asset in API responses.
type RecordedAssetResponse struct {
	ID           string          `json:"id"`
	VideoPath    string          `json:"video_path"`
	HasSubtitle  bool            `json:"has_subtitle"`
	HasThumbnail bool            `json:"has_thumbnail"`
	Metadata     *models.Sidecar `json:"metadata"`
}

// EditedAssetResponse is one edited asset in API responses.
type EditedAssetResponse struct {
	ID        string `json:"id"`
	VideoPath string `json:"video_path"`
}

// ListRecordedOutput is the output for the recorded listing.
type ListRecordedOutput struct {
	Body struct {
		Assets []RecordedAssetResponse `json:"assets"`
	}
}

// ListEditedOutput is the output for the edited listing.
type ListEditedOutput struct {
	Body struct {
		Assets []EditedAssetResponse `json:"assets"`
	}
}

// AssetIDInput identifies one asset.
type AssetIDInput struct {
	ID string `path:"id" doc:"Asset id (base name without extension)"`
}

// UpdateMetadataInput carries the replacement sidecar for an asset.
type UpdateMetadataInput struct {
	ID   string `path:"id" doc:"Asset id"`
	Body models.Sidecar
}

// UpdateMetadataOutput echoes the stored sidecar.
type UpdateMetadataOutput struct {
	Body models.Sidecar
}

// Register registers the asset routes with the API.
func (h *AssetsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listRecordedAssets",
		Method:      http.MethodGet,
		Path:        "/assets/recorded",
		Summary:     "List recorded assets",
		Tags:        []string{"Assets"},
	}, h.ListRecorded)

	huma.Register(api, huma.Operation{
		OperationID: "listEditedAssets",
		Method:      http.MethodGet,
		Path:        "/assets/edited",
		Summary:     "List edited assets",
		Tags:        []string{"Assets"},
	}, h.ListEdited)

	huma.Register(api, huma.Operation{
		OperationID: "updateRecordedMetadata",
		Method:      http.MethodPatch,
		Path:        "/assets/recorded/{id}/metadata",
		Summary:     "Replace a recorded asset's metadata sidecar",
		Tags:        []string{"Assets"},
	}, h.UpdateMetadata)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteRecordedAsset",
		Method:        http.MethodDelete,
		Path:          "/assets/recorded/{id}",
		Summary:       "Delete a recorded asset and its sidecars",
		Tags:          []string{"Assets"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteRecorded)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteEditedAsset",
		Method:        http.MethodDelete,
		Path:          "/assets/edited/{id}",
		Summary:       "Delete an edited asset",
		Tags:          []string{"Assets"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteEdited)
}

// ListRecorded returns every recorded asset with its sidecar metadata.
func (h *AssetsHandler) ListRecorded(_ context.Context, _ *struct{}) (*ListRecordedOutput, error) {
	assets, err := h.store.ListRecordings()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing recordings", err)
	}
	out := &ListRecordedOutput{}
	out.Body.Assets = make([]RecordedAssetResponse, 0, len(assets))
	for _, a := range assets {
		resp := RecordedAssetResponse{
			ID:           a.ID,
			VideoPath:    a.VideoPath,
			HasSubtitle:  a.SubtitlePath != "",
			HasThumbnail: a.ThumbnailPath != "",
		}
		if a.Metadata != nil {
			sc := a.Metadata.ToSidecar()
			resp.Metadata = &sc
		}
		out.Body.Assets = append(out.Body.Assets, resp)
	}
	return out, nil
}

// ListEdited returns every edited video.
func (h *AssetsHandler) ListEdited(_ context.Context, _ *struct{}) (*ListEditedOutput, error) {
	paths, err := h.store.ListEdited()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing edited videos", err)
	}
	out := &ListEditedOutput{}
	out.Body.Assets = make([]EditedAssetResponse, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		out.Body.Assets = append(out.Body.Assets, EditedAssetResponse{
			ID:        base[:len(base)-len(filepath.Ext(base))],
			VideoPath: p,
		})
	}
	return out, nil
}

// UpdateMetadata replaces the sidecar of a recorded asset.
func (h *AssetsHandler) UpdateMetadata(_ context.Context, input *UpdateMetadataInput) (*UpdateMetadataOutput, error) {
	if _, err := h.store.GetRecording(input.ID); err != nil {
		return nil, assetError(err)
	}
	meta, err := models.FromSidecar(input.Body)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	if err := h.store.UpdateMetadata(input.ID, meta); err != nil {
		return nil, assetError(err)
	}
	return &UpdateMetadataOutput{Body: meta.ToSidecar()}, nil
}

// DeleteRecorded removes a recorded asset and all of its sidecars.
func (h *AssetsHandler) DeleteRecorded(_ context.Context, input *AssetIDInput) (*struct{}, error) {
	if err := h.store.DeleteRecording(input.ID); err != nil {
		return nil, assetError(err)
	}
	return nil, nil
}

// DeleteEdited removes an edited video.
func (h *AssetsHandler) DeleteEdited(_ context.Context, input *AssetIDInput) (*struct{}, error) {
	if err := h.store.DeleteEdited(input.ID); err != nil {
		return nil, assetError(err)
	}
	return nil, nil
}

func assetError(err error) error {
	if errors.Is(err, storage.ErrAssetNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError("asset operation failed", err)
}
