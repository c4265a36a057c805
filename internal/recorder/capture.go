package recorder

import (
	"context"

	"github.com/saw4405/splat-replay/internal/vision"
)

// Source yields frames from the capture device. Capture returns
// (nil, nil) on a transient miss; the loop continues.
type Source interface {
	Setup(ctx context.Context) error
	Capture(ctx context.Context) (*vision.Frame, error)
	Teardown() error
}

// RecorderState mirrors the external recorder's state-changed events.
type RecorderState string

const (
	RecorderStarted RecorderState = "started"
	RecorderPaused  RecorderState = "paused"
	RecorderResumed RecorderState = "resumed"
	RecorderStopped RecorderState = "stopped"
)

// ExternalRecorder is the OBS-shaped collaborator that produces the
// actual video files.
type ExternalRecorder interface {
	IsRunning(ctx context.Context) (bool, error)
	Launch(ctx context.Context) error
	Connect(ctx context.Context) error
	Start(ctx context.Context) error
	// Stop ends the recording and returns the output file path.
	Stop(ctx context.Context) (string, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	StartVirtualCamera(ctx context.Context) error
	StopVirtualCamera(ctx context.Context) error
	IsVirtualCameraActive(ctx context.Context) (bool, error)
	// OnStateChanged registers a callback for recorder state events.
	OnStateChanged(func(RecorderState))
}

// SubtitleCapture records live-transcribed subtitles alongside a
// session.
type SubtitleCapture interface {
	Start(ctx context.Context) error
	// Stop ends capture and returns the accumulated SRT text.
	Stop(ctx context.Context) (string, error)
}
