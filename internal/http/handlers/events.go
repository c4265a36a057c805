package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saw4405/splat-replay/internal/events"
)

// EventsHandler streams bus events to clients over Server-Sent Events.
// Handlers never cancel the pipeline on disconnect; they only stop
// forwarding.
type EventsHandler struct {
	bus               *events.Bus
	heartbeatInterval time.Duration
}

// NewEventsHandler creates a new SSE handler.
func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{
		bus:               bus,
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval overrides the keepalive interval (for testing).
func (h *EventsHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// RegisterRoutes mounts the SSE channels on the raw router. SSE needs
// direct access to the response writer, so these bypass the API layer.
func (h *EventsHandler) RegisterRoutes(router chi.Router) {
	channels := map[string][]string{
		"progress": {
			events.TypeProgressStart, events.TypeProgressTotal,
			events.TypeProgressStage, events.TypeProgressAdvance,
			events.TypeProgressFinish, events.TypeProgressItems,
			events.TypeProgressItemStage, events.TypeProgressItemFinish,
		},
		// domain-events carries everything.
		"domain-events": nil,
		"recorder-state": {
			events.TypeRecorderState,
		},
		"metadata": {
			events.TypeRecorderMatch,
			events.TypeRecorderMetadataUpdated,
			events.TypeRecorderReset,
			events.TypeAssetRecordedMetadataUpdated,
		},
		"assets": {
			events.TypeAssetRecordedSaved,
			events.TypeAssetRecordedMetadataUpdated,
			events.TypeAssetRecordedSubtitleUpdated,
			events.TypeAssetRecordedDeleted,
			events.TypeAssetEditedSaved,
			events.TypeAssetEditedDeleted,
		},
	}
	for channel, types := range channels {
		types := types
		router.Get("/events/"+channel, func(w http.ResponseWriter, r *http.Request) {
			h.stream(w, r, types)
		})
	}
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request, types []string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.bus.Subscribe(types...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-sub.Notify():
			for _, ev := range sub.Poll(0) {
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			}
			flusher.Flush()
		}
	}
}
