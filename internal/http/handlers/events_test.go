package handlers

import (
	"bufio"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saw4405/splat-replay/internal/events"
)

// readSSEEvent reads lines until one full SSE message is consumed.
func readSSEEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	lines := make(chan string, 16)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimRight(line, "\n")
		}
	}()
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for SSE event")
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before event")
			}
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}
}

func TestEventsStreamDeliversFilteredEvents(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	bus := events.NewBus(64, logger)
	defer bus.Close()

	router := chi.NewRouter()
	h := NewEventsHandler(bus)
	h.SetHeartbeatInterval(100 * time.Millisecond)
	h.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/events/recorder-state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// The filtered channel skips non-matching types.
	go func() {
		time.Sleep(50 * time.Millisecond)
		bus.Publish(events.TypeProgressStart, map[string]any{"task_id": "x"})
		bus.Publish(events.TypeRecorderState, map[string]any{"state": "RECORDING"})
	}()

	name, data := readSSEEvent(t, reader)
	assert.Equal(t, events.TypeRecorderState, name)
	assert.Contains(t, data, `"RECORDING"`)
}

func TestEventsDomainChannelReceivesEverything(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	bus := events.NewBus(64, logger)
	defer bus.Close()

	router := chi.NewRouter()
	NewEventsHandler(bus).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/events/domain-events")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	go func() {
		time.Sleep(50 * time.Millisecond)
		bus.Publish(events.TypeAssetRecordedSaved, map[string]any{"path": "/r/a.mkv"})
	}()

	name, data := readSSEEvent(t, reader)
	assert.Equal(t, events.TypeAssetRecordedSaved, name)
	assert.Contains(t, data, "a.mkv")
}
