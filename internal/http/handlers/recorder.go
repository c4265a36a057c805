// Package handlers provides the HTTP API handlers for splat-replay.
package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/saw4405/splat-replay/internal/recorder"
)

// RecorderService is the slice of the auto-recorder the handler drives.
type RecorderService interface {
	State() recorder.State
	LoopRunning() bool
	ManualStart(ctx context.Context) error
	ManualStop(ctx context.Context) error
	ManualPause(ctx context.Context) error
	ManualResume(ctx context.Context) error
	ManualCancel(ctx context.Context) error
}

// RecorderHandler exposes recorder state and manual control.
type RecorderHandler struct {
	recorder RecorderService
}

// NewRecorderHandler creates a new recorder handler.
func NewRecorderHandler(rec RecorderService) *RecorderHandler {
	return &RecorderHandler{recorder: rec}
}

// RecorderStateBody reports the state machine and capture loop status.
type RecorderStateBody struct {
	State       string `json:"state" doc:"Recorder state: STOPPED, RECORDING or PAUSED"`
	LoopRunning bool   `json:"loop_running" doc:"Whether the capture loop is active"`
}

// RecorderStateOutput is the output for the state endpoint.
type RecorderStateOutput struct {
	Body RecorderStateBody
}

// RecorderControlOutput is the output for the control endpoints.
type RecorderControlOutput struct {
	Body RecorderStateBody
}

// Register registers the recorder routes with the API.
func (h *RecorderHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getRecorderState",
		Method:      http.MethodGet,
		Path:        "/recorder/state",
		Summary:     "Get recorder state",
		Tags:        []string{"Recorder"},
	}, h.GetState)

	controls := []struct {
		op   string
		name string
		run  func(context.Context) error
	}{
		{"start", "Start recording", func(ctx context.Context) error { return h.recorder.ManualStart(ctx) }},
		{"stop", "Stop recording and save the asset", func(ctx context.Context) error { return h.recorder.ManualStop(ctx) }},
		{"pause", "Pause recording", func(ctx context.Context) error { return h.recorder.ManualPause(ctx) }},
		{"resume", "Resume recording", func(ctx context.Context) error { return h.recorder.ManualResume(ctx) }},
		{"cancel", "Cancel and discard the session", func(ctx context.Context) error { return h.recorder.ManualCancel(ctx) }},
	}
	for _, c := range controls {
		run := c.run
		huma.Register(api, huma.Operation{
			OperationID:   "recorder-" + c.op,
			Method:        http.MethodPost,
			Path:          "/recorder/" + c.op,
			Summary:       c.name,
			Tags:          []string{"Recorder"},
			DefaultStatus: http.StatusOK,
		}, func(ctx context.Context, _ *struct{}) (*RecorderControlOutput, error) {
			if err := run(ctx); err != nil {
				return nil, huma.Error409Conflict(err.Error())
			}
			return &RecorderControlOutput{Body: h.stateBody()}, nil
		})
	}
}

// GetState returns the recorder state.
func (h *RecorderHandler) GetState(_ context.Context, _ *struct{}) (*RecorderStateOutput, error) {
	return &RecorderStateOutput{Body: h.stateBody()}, nil
}

func (h *RecorderHandler) stateBody() RecorderStateBody {
	return RecorderStateBody{
		State:       h.recorder.State().Wire(),
		LoopRunning: h.recorder.LoopRunning(),
	}
}
