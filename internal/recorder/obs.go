package recorder

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/saw4405/splat-replay/internal/config"
)

// OBS WebSocket v5 opcodes.
const (
	obsOpHello      = 0
	obsOpIdentify   = 1
	obsOpIdentified = 2
	obsOpEvent      = 5
	obsOpRequest    = 6
	obsOpResponse   = 7
)

const obsRequestTimeout = 10 * time.Second

// OBSRecorder drives OBS Studio over its WebSocket v5 protocol.
type OBSRecorder struct {
	cfg    config.RecorderConfig
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]chan obsMessage
	listeners []func(RecorderState)
	closed    chan struct{}
}

type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsHello struct {
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
	RPCVersion int `json:"rpcVersion"`
}

type obsRequest struct {
	RequestType string         `json:"requestType"`
	RequestID   string         `json:"requestId"`
	RequestData map[string]any `json:"requestData,omitempty"`
}

type obsResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

type obsEvent struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

// NewOBSRecorder builds the adapter; Connect establishes the session.
func NewOBSRecorder(cfg config.RecorderConfig, logger *slog.Logger) *OBSRecorder {
	return &OBSRecorder{
		cfg:     cfg,
		logger:  logger.With("component", "recorder.obs"),
		pending: make(map[string]chan obsMessage),
	}
}

// IsRunning reports whether the OBS process exists.
func (r *OBSRecorder) IsRunning(ctx context.Context) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("listing processes: %w", err)
	}
	want := strings.ToLower(r.cfg.ProcessName)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.ToLower(name) == want {
			return true, nil
		}
	}
	return false, nil
}

// Launch starts the OBS process detached.
func (r *OBSRecorder) Launch(ctx context.Context) error {
	running, err := r.IsRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		return nil
	}
	cmd := exec.Command(r.cfg.ProcessName, "--disable-shutdown-check", "--minimize-to-tray")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching recorder: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Connect dials the WebSocket endpoint and completes the identify
// handshake.
func (r *OBSRecorder) Connect(ctx context.Context) error {
	url := fmt.Sprintf("ws://%s:%d", r.cfg.Host, r.cfg.Port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing recorder websocket: %w", err)
	}

	var hello obsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("reading hello: %w", err)
	}
	if hello.Op != obsOpHello {
		conn.Close()
		return fmt.Errorf("unexpected opcode %d during handshake", hello.Op)
	}
	var helloData obsHello
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		conn.Close()
		return fmt.Errorf("parsing hello: %w", err)
	}

	identify := map[string]any{"rpcVersion": 1}
	if helloData.Authentication != nil {
		identify["authentication"] = obsAuthToken(r.cfg.Password,
			helloData.Authentication.Salt, helloData.Authentication.Challenge)
	}
	if err := conn.WriteJSON(obsMessage{Op: obsOpIdentify, D: mustJSON(identify)}); err != nil {
		conn.Close()
		return fmt.Errorf("sending identify: %w", err)
	}

	var identified obsMessage
	if err := conn.ReadJSON(&identified); err != nil {
		conn.Close()
		return fmt.Errorf("reading identified: %w", err)
	}
	if identified.Op != obsOpIdentified {
		conn.Close()
		return fmt.Errorf("identify rejected (opcode %d)", identified.Op)
	}

	r.mu.Lock()
	r.conn = conn
	r.closed = make(chan struct{})
	r.mu.Unlock()

	go r.readLoop(conn)
	return nil
}

// obsAuthToken derives the v5 authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func obsAuthToken(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func (r *OBSRecorder) readLoop(conn *websocket.Conn) {
	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
			close(r.closed)
		}
		r.mu.Unlock()
	}()

	for {
		var msg obsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			r.logger.Warn("recorder websocket closed", slog.String("error", err.Error()))
			return
		}
		switch msg.Op {
		case obsOpResponse:
			var resp obsResponse
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				continue
			}
			r.mu.Lock()
			ch, ok := r.pending[resp.RequestID]
			delete(r.pending, resp.RequestID)
			r.mu.Unlock()
			if ok {
				ch <- msg
			}
		case obsOpEvent:
			r.dispatchEvent(msg.D)
		}
	}
}

func (r *OBSRecorder) dispatchEvent(data json.RawMessage) {
	var ev obsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	if ev.EventType != "RecordStateChanged" {
		return
	}
	var payload struct {
		OutputState string `json:"outputState"`
	}
	if err := json.Unmarshal(ev.EventData, &payload); err != nil {
		return
	}

	var state RecorderState
	switch payload.OutputState {
	case "OBS_WEBSOCKET_OUTPUT_STARTED":
		state = RecorderStarted
	case "OBS_WEBSOCKET_OUTPUT_PAUSED":
		state = RecorderPaused
	case "OBS_WEBSOCKET_OUTPUT_RESUMED":
		state = RecorderResumed
	case "OBS_WEBSOCKET_OUTPUT_STOPPED":
		state = RecorderStopped
	default:
		return
	}

	r.mu.Lock()
	listeners := append([]func(RecorderState){}, r.listeners...)
	r.mu.Unlock()
	for _, l := range listeners {
		l(state)
	}
}

// OnStateChanged implements ExternalRecorder.
func (r *OBSRecorder) OnStateChanged(cb func(RecorderState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, cb)
}

// request performs one request/response round trip.
func (r *OBSRecorder) request(ctx context.Context, requestType string, data map[string]any) (json.RawMessage, error) {
	r.mu.Lock()
	conn := r.conn
	if conn == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("recorder not connected")
	}
	id := uuid.NewString()
	ch := make(chan obsMessage, 1)
	r.pending[id] = ch
	r.mu.Unlock()

	req := obsRequest{RequestType: requestType, RequestID: id, RequestData: data}
	if err := conn.WriteJSON(obsMessage{Op: obsOpRequest, D: mustJSON(req)}); err != nil {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return nil, fmt.Errorf("sending %s: %w", requestType, err)
	}

	timer := time.NewTimer(obsRequestTimeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		var resp obsResponse
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return nil, fmt.Errorf("parsing %s response: %w", requestType, err)
		}
		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("%s failed: %s (code %d)",
				requestType, resp.RequestStatus.Comment, resp.RequestStatus.Code)
		}
		return resp.ResponseData, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s timed out", requestType)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start begins recording.
func (r *OBSRecorder) Start(ctx context.Context) error {
	_, err := r.request(ctx, "StartRecord", nil)
	return err
}

// Stop ends recording and returns the output path.
func (r *OBSRecorder) Stop(ctx context.Context) (string, error) {
	data, err := r.request(ctx, "StopRecord", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		OutputPath string `json:"outputPath"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parsing stop response: %w", err)
	}
	return out.OutputPath, nil
}

// Pause pauses recording.
func (r *OBSRecorder) Pause(ctx context.Context) error {
	_, err := r.request(ctx, "PauseRecord", nil)
	return err
}

// Resume resumes a paused recording.
func (r *OBSRecorder) Resume(ctx context.Context) error {
	_, err := r.request(ctx, "ResumeRecord", nil)
	return err
}

// StartVirtualCamera enables the virtual camera output.
func (r *OBSRecorder) StartVirtualCamera(ctx context.Context) error {
	_, err := r.request(ctx, "StartVirtualCam", nil)
	return err
}

// StopVirtualCamera disables the virtual camera output.
func (r *OBSRecorder) StopVirtualCamera(ctx context.Context) error {
	_, err := r.request(ctx, "StopVirtualCam", nil)
	return err
}

// IsVirtualCameraActive reports the virtual camera state.
func (r *OBSRecorder) IsVirtualCameraActive(ctx context.Context) (bool, error) {
	data, err := r.request(ctx, "GetVirtualCamStatus", nil)
	if err != nil {
		return false, err
	}
	var out struct {
		OutputActive bool `json:"outputActive"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return false, fmt.Errorf("parsing virtual cam status: %w", err)
	}
	return out.OutputActive, nil
}

// Close tears down the WebSocket session.
func (r *OBSRecorder) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
