package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saw4405/splat-replay/internal/analyzer"
	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
	"github.com/saw4405/splat-replay/internal/weapons"
)

// Analyzer is the slice of the frame analyzer the orchestrator needs.
// *analyzer.FrameAnalyzer satisfies it; tests substitute fakes.
type Analyzer interface {
	DetectMatchSelect(f *vision.Frame) bool
	ExtractMatchSelect(f *vision.Frame) (models.Match, bool)
	DetectMatchingStart(f *vision.Frame) bool
	DetectScheduleChange(f *vision.Frame) bool
	DetectPowerOff(f *vision.Frame) bool
	DetectSessionStart(f *vision.Frame) (models.GameMode, bool)
	Plugin(mode models.GameMode) analyzer.ModeAnalyzer
}

// WeaponProcessor is the weapon-recognition service surface used per
// frame.
type WeaponProcessor interface {
	Process(session *weapons.Session, f *vision.Frame)
	RequestCancel()
	Reset()
}

// AssetSaver hands a completed recording to the asset repository.
type AssetSaver interface {
	SaveRecording(ctx context.Context, videoPath, subtitle string,
		screenshot *vision.Frame, meta *models.RecordingMetadata) (string, error)
}

// session is the mutable per-recording state owned by the orchestrator.
type session struct {
	gameMode          models.GameMode
	match             models.Match
	rate              models.Rate
	matchingStartedAt time.Time
	battleStartedAt   time.Time
	metadata          *models.RecordingMetadata
	weapons           *weapons.Session
	lastFrame         *vision.Frame
}

// AutoRecorder runs the capture loop: frames in, recorder control and
// saved assets out.
type AutoRecorder struct {
	cfg       config.RecorderConfig
	source    Source
	recorder  ExternalRecorder
	subtitles SubtitleCapture
	analyzer  Analyzer
	weapons   WeaponProcessor
	machine   *StateMachine
	saver     AssetSaver
	bus       *events.Bus
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	// mu serializes manual-command execution with the capture loop's
	// frame dispatch; both mutate the session state below.
	mu            sync.Mutex
	sess          session
	finish        bool
	resumeTrigger func(f *vision.Frame) bool

	loopRunning atomic.Bool
}

// NewAutoRecorder wires the orchestrator. The state machine gets a
// listener publishing recorder.state events.
func NewAutoRecorder(cfg config.RecorderConfig, source Source, rec ExternalRecorder,
	subtitles SubtitleCapture, an Analyzer, wp WeaponProcessor,
	saver AssetSaver, bus *events.Bus, logger *slog.Logger) *AutoRecorder {

	r := &AutoRecorder{
		cfg:       cfg,
		source:    source,
		recorder:  rec,
		subtitles: subtitles,
		analyzer:  an,
		weapons:   wp,
		machine:   NewStateMachine(logger),
		saver:     saver,
		bus:       bus,
		logger:    logger.With("component", "recorder"),
		now:       time.Now,
	}
	r.sess.gameMode = models.GameModeBattle
	r.machine.OnTransition(func(_ State, _ Event, to State) {
		r.publish(events.TypeRecorderState, map[string]any{"state": to.Wire()})
	})
	return r
}

// StateMachine exposes the machine for additional listeners.
func (r *AutoRecorder) StateMachine() *StateMachine { return r.machine }

// State returns the current recording state.
func (r *AutoRecorder) State() State { return r.machine.State() }

// LoopRunning reports whether the capture loop is active.
func (r *AutoRecorder) LoopRunning() bool {
	return r.loopRunning.Load()
}

// Run executes the capture loop until the context ends or the console
// power-off sentinel is observed for the configured streak.
func (r *AutoRecorder) Run(ctx context.Context) error {
	if err := r.source.Setup(ctx); err != nil {
		return fmt.Errorf("setting up capture source: %w", err)
	}
	defer func() {
		if err := r.source.Teardown(); err != nil {
			r.logger.Warn("capture teardown failed", slog.String("error", err.Error()))
		}
	}()

	r.loopRunning.Store(true)
	defer r.loopRunning.Store(false)

	powerOffStreak := 0
	var lastPowerCheck time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := r.source.Capture(ctx)
		if err != nil {
			r.logger.Warn("capture failed", slog.String("error", err.Error()))
			continue
		}
		if frame == nil {
			continue
		}

		if now := r.now(); now.Sub(lastPowerCheck) >= r.cfg.PowerOffInterval {
			lastPowerCheck = now
			if r.analyzer.DetectPowerOff(frame) {
				powerOffStreak++
				if powerOffStreak >= r.cfg.PowerOffStreak {
					r.logger.Info("console power-off confirmed, leaving capture loop",
						slog.Int("streak", powerOffStreak))
					return nil
				}
			} else {
				powerOffStreak = 0
			}
		}

		r.processFrame(ctx, frame)
	}
}

// processFrame dispatches one frame by the current state. The lock
// keeps manual commands from mutating the session mid-frame.
func (r *AutoRecorder) processFrame(ctx context.Context, f *vision.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess.lastFrame = f
	switch r.machine.State() {
	case StateStopped:
		r.processStandby(ctx, f)
	case StateRecording:
		if r.finish {
			r.processFinished(ctx, f)
		} else {
			r.processRecording(ctx, f)
		}
	case StatePaused:
		r.processPaused(ctx, f)
	}
}

func (r *AutoRecorder) processStandby(ctx context.Context, f *vision.Frame) {
	if r.sess.matchingStartedAt.IsZero() {
		if r.analyzer.DetectMatchSelect(f) {
			if match, ok := r.analyzer.ExtractMatchSelect(f); ok {
				r.sess.gameMode = models.GameModeBattle
				r.sess.match = match
				r.updateRate(ctx, f, match)
			}
			return
		}
		if r.analyzer.DetectMatchingStart(f) {
			r.sess.matchingStartedAt = r.now()
			r.publish(events.TypeRecorderMatch, map[string]any{"event": "matching_started"})
		}
		return
	}

	if r.analyzer.DetectScheduleChange(f) {
		r.cancelSession(ctx)
		return
	}
	// The start screen decides the game mode; match select only ever
	// shows battle categories, so a salmon shift is recognized here.
	if mode, ok := r.analyzer.DetectSessionStart(f); ok {
		r.sess.gameMode = mode
		r.beginRecording(ctx)
	}
}

// updateRate applies the rate-update rule: write only when the type or
// the value changed. A cross-tag assignment counts as a change.
func (r *AutoRecorder) updateRate(ctx context.Context, f *vision.Frame, match models.Match) {
	plugin := r.analyzer.Plugin(r.sess.gameMode)
	if plugin == nil {
		return
	}
	rate, ok := plugin.ExtractRate(ctx, f, match)
	if !ok {
		return
	}
	if r.sess.rate.Type == rate.Type && r.sess.rate.Equal(rate) {
		return
	}
	r.sess.rate = rate
	r.publish(events.TypeRecorderMatch, map[string]any{
		"event": "rate_updated",
		"rate":  rate.String(),
	})
}

func (r *AutoRecorder) processRecording(ctx context.Context, f *vision.Frame) {
	if r.sess.weapons != nil {
		r.weapons.Process(r.sess.weapons, f)
	}

	plugin := r.analyzer.Plugin(r.sess.gameMode)
	if plugin == nil {
		return
	}
	elapsed := r.now().Sub(r.sess.battleStartedAt)

	if elapsed < r.cfg.AbortWindow && plugin.DetectSessionAbort(f) {
		r.logger.Info("session aborted", slog.Duration("elapsed", elapsed))
		r.cancelSession(ctx)
		return
	}
	if elapsed >= r.cfg.BattleTimeout {
		r.logger.Warn("session timed out, force stopping", slog.Duration("elapsed", elapsed))
		r.operationStatus("recording stopped: session timeout")
		r.stopRecording(ctx, f)
		return
	}
	if plugin.DetectSessionFinish(f) {
		r.finish = true
		r.resumeTrigger = plugin.DetectSessionJudgement
		r.pause(ctx)
	}
}

func (r *AutoRecorder) processFinished(ctx context.Context, f *vision.Frame) {
	plugin := r.analyzer.Plugin(r.sess.gameMode)
	if plugin == nil {
		return
	}

	if r.sess.metadata.Judgement == "" && plugin.DetectSessionJudgement(f) {
		if judgement, ok := plugin.ExtractSessionJudgement(f); ok {
			r.sess.metadata.Judgement = judgement
			r.publishMetadata()
		}
		return
	}
	if plugin.DetectLoading(f) {
		r.resumeTrigger = plugin.DetectLoadingEnd
		r.pause(ctx)
		return
	}
	if plugin.DetectSessionResult(f) {
		if result, ok := plugin.ExtractSessionResult(ctx, f); ok {
			r.sess.metadata.Result = result
			r.publishMetadata()
		}
		r.stopRecording(ctx, f)
	}
}

func (r *AutoRecorder) processPaused(ctx context.Context, f *vision.Frame) {
	if r.resumeTrigger != nil && r.resumeTrigger(f) {
		r.resumeTrigger = nil
		r.resume(ctx)
	}
}

// beginRecording starts the external recorder and opens the session
// metadata. The metadata keeps the matching-start timestamp.
func (r *AutoRecorder) beginRecording(ctx context.Context) {
	if err := r.recorder.Start(ctx); err != nil {
		r.logger.Error("recorder start failed", slog.String("error", err.Error()))
		r.operationStatus("recorder start failed: " + err.Error())
		return
	}
	if r.subtitles != nil {
		if err := r.subtitles.Start(ctx); err != nil {
			r.logger.Warn("subtitle capture start failed", slog.String("error", err.Error()))
		}
	}

	now := r.now()
	r.sess.battleStartedAt = now
	r.sess.metadata = models.NewRecordingMetadata(r.sess.gameMode, r.sess.matchingStartedAt)
	r.sess.metadata.Rate = r.sess.rate
	r.weapons.Reset()
	r.sess.weapons = &weapons.Session{BattleStartedAt: now, Metadata: r.sess.metadata}
	r.finish = false

	r.machine.Apply(EventStart)
	r.publish(events.TypeRecorderMatch, map[string]any{"event": "battle_started"})
}

// stopRecording performs the stop path: recorder stop plus subtitle
// pull in parallel with one final result extraction, then hands the
// quadruple to the repository.
func (r *AutoRecorder) stopRecording(ctx context.Context, f *vision.Frame) {
	meta := r.sess.metadata
	plugin := r.analyzer.Plugin(r.sess.gameMode)

	var (
		videoPath string
		subtitle  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Let the result screen land in the file before stopping.
		select {
		case <-time.After(r.cfg.StopWait):
		case <-gctx.Done():
		}
		path, err := r.recorder.Stop(gctx)
		if err != nil {
			return fmt.Errorf("stopping recorder: %w", err)
		}
		videoPath = path
		if r.subtitles != nil {
			srt, err := r.subtitles.Stop(gctx)
			if err != nil {
				r.logger.Warn("subtitle capture stop failed", slog.String("error", err.Error()))
			} else {
				subtitle = srt
			}
		}
		return nil
	})
	g.Go(func() error {
		if meta == nil || !meta.Result.IsZero() || plugin == nil || f == nil {
			return nil
		}
		if result, ok := plugin.ExtractSessionResult(gctx, f); ok {
			meta.Result = result
		}
		return nil
	})
	err := g.Wait()

	r.machine.Apply(EventStop)

	if err != nil {
		r.logger.Error("stop path failed", slog.String("error", err.Error()))
		r.operationStatus("recording stop failed: " + err.Error())
		r.resetSession()
		return
	}

	if meta != nil && videoPath != "" {
		saved, err := r.saver.SaveRecording(ctx, videoPath, subtitle, f, meta)
		if err != nil {
			r.logger.Error("saving recording failed", slog.String("error", err.Error()))
			r.operationStatus("saving recording failed: " + err.Error())
		} else {
			r.publish(events.TypeAssetRecordedSaved, map[string]any{"path": saved})
		}
	}
	r.resetSession()
}

// cancelSession stops everything without persisting.
func (r *AutoRecorder) cancelSession(ctx context.Context) {
	r.weapons.RequestCancel()
	if r.machine.State() != StateStopped {
		if _, err := r.recorder.Stop(ctx); err != nil {
			r.logger.Warn("recorder stop during cancel failed", slog.String("error", err.Error()))
		}
		if r.subtitles != nil {
			if _, err := r.subtitles.Stop(ctx); err != nil {
				r.logger.Warn("subtitle stop during cancel failed", slog.String("error", err.Error()))
			}
		}
		r.machine.Apply(EventStop)
	}
	r.resetSession()
	r.publish(events.TypeRecorderReset, map[string]any{})
}

func (r *AutoRecorder) resetSession() {
	rate := r.sess.rate
	mode := r.sess.gameMode
	r.sess = session{gameMode: mode, rate: rate}
	r.finish = false
	r.resumeTrigger = nil
}

func (r *AutoRecorder) pause(ctx context.Context) {
	if err := r.recorder.Pause(ctx); err != nil {
		r.logger.Warn("recorder pause failed", slog.String("error", err.Error()))
		r.operationStatus("recorder pause failed: " + err.Error())
		return
	}
	r.machine.Apply(EventPause)
}

func (r *AutoRecorder) resume(ctx context.Context) {
	if err := r.recorder.Resume(ctx); err != nil {
		r.logger.Warn("recorder resume failed", slog.String("error", err.Error()))
		r.operationStatus("recorder resume failed: " + err.Error())
		return
	}
	r.machine.Apply(EventResume)
}

// ManualStart begins recording on user request, outside the frame
// pipeline.
func (r *AutoRecorder) ManualStart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machine.State() != StateStopped {
		return fmt.Errorf("already recording")
	}
	if r.sess.matchingStartedAt.IsZero() {
		r.sess.matchingStartedAt = r.now()
	}
	r.beginRecording(ctx)
	if r.machine.State() != StateRecording {
		return fmt.Errorf("recorder failed to start")
	}
	return nil
}

// ManualStop stops and saves the current recording on user request.
func (r *AutoRecorder) ManualStop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machine.State() == StateStopped {
		return fmt.Errorf("not recording")
	}
	r.stopRecording(ctx, r.sess.lastFrame)
	return nil
}

// ManualPause pauses on user request.
func (r *AutoRecorder) ManualPause(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machine.State() != StateRecording {
		return fmt.Errorf("not recording")
	}
	r.pause(ctx)
	return nil
}

// ManualResume resumes on user request.
func (r *AutoRecorder) ManualResume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machine.State() != StatePaused {
		return fmt.Errorf("not paused")
	}
	r.resume(ctx)
	return nil
}

// ManualCancel discards the current session on user request.
func (r *AutoRecorder) ManualCancel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelSession(ctx)
	return nil
}

func (r *AutoRecorder) publish(eventType string, payload map[string]any) {
	if r.bus != nil {
		r.bus.Publish(eventType, payload)
	}
}

func (r *AutoRecorder) publishMetadata() {
	if r.sess.metadata == nil {
		return
	}
	r.publish(events.TypeRecorderMetadataUpdated, map[string]any{
		"metadata": r.sess.metadata.ToSidecar(),
	})
}

func (r *AutoRecorder) operationStatus(message string) {
	r.publish(events.TypeRecorderOperationStatus, map[string]any{"message": message})
}
