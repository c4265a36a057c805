package weapons

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
)

// Session is the per-recording weapon state. It is created by the
// auto-recorder when a battle starts and threaded through Process on
// every frame. Its fields are guarded by the service lock once tasks
// are in flight.
type Session struct {
	BattleStartedAt time.Time
	Metadata        *models.RecordingMetadata

	// DetectionAttempts counts display-detection probes, for diagnostics.
	DetectionAttempts int
	// Done is set once a final result (or the finalize fallback) has
	// been applied; Process is a no-op afterwards.
	Done bool
}

// matchEventWeapons is the recorder.match event name for weapon
// results.
const matchEventWeapons = "battle_weapons_detected"

// Service drives weapon recognition from the capture loop with an
// at-most-one-in-flight task, latest-frame coalescing, and a
// generation-counter cancel.
type Service struct {
	detector   Detector
	recognizer Recognizer
	bus        *events.Bus
	cfg        config.WeaponsConfig
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	mu         sync.Mutex
	running    bool
	pending    *vision.Frame
	generation uint64
	results    map[models.SlotID]models.WeaponSlotResult
	finalized  bool
}

// NewService builds the recognition service.
func NewService(detector Detector, recognizer Recognizer, bus *events.Bus, cfg config.WeaponsConfig, logger *slog.Logger) *Service {
	return &Service{
		detector:   detector,
		recognizer: recognizer,
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With("component", "weapons"),
		now:        time.Now,
		results:    make(map[models.SlotID]models.WeaponSlotResult),
	}
}

// Reset clears per-session state. Call when a new recording session
// begins.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.pending = nil
	s.results = make(map[models.SlotID]models.WeaponSlotResult)
	s.finalized = false
}

// RequestCancel invalidates any in-flight and pending recognition.
// Results from superseded generations are discarded on completion.
func (s *Service) RequestCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.pending = nil
}

// Process advances recognition for one captured frame. Within the
// detection window it probes for the weapon display and runs bounded
// recognition tasks; after the window closes it runs the one-shot
// finalize pass.
func (s *Service) Process(session *Session, f *vision.Frame) {
	windowOpen := s.now().Sub(session.BattleStartedAt) < s.cfg.DetectionWindow

	s.mu.Lock()
	if session.Done {
		s.mu.Unlock()
		return
	}
	if s.running {
		if windowOpen {
			s.pending = f
		}
		s.mu.Unlock()
		return
	}
	if !windowOpen {
		if s.finalized {
			s.mu.Unlock()
			return
		}
		s.finalized = true
		s.running = true
		gen := s.generation
		s.mu.Unlock()
		go s.finalize(session, f, gen)
		return
	}
	session.DetectionAttempts++
	s.mu.Unlock()

	if !s.detector.DetectWeaponDisplay(f) {
		return
	}

	s.mu.Lock()
	if s.running || session.Done {
		if s.running {
			s.pending = f
		}
		s.mu.Unlock()
		return
	}
	s.running = true
	gen := s.generation
	previous, targets := s.snapshotTargetsLocked()
	s.mu.Unlock()

	go s.recognize(session, f, gen, targets, previous)
}

// snapshotTargetsLocked returns the already-matched results and the
// slots still needing recognition. Caller holds the lock.
func (s *Service) snapshotTargetsLocked() (map[models.SlotID]models.WeaponSlotResult, []models.SlotID) {
	previous := make(map[models.SlotID]models.WeaponSlotResult, len(s.results))
	var targets []models.SlotID
	for _, slot := range models.AllSlots {
		if sr, ok := s.results[slot]; ok && !sr.IsUnmatched {
			previous[slot] = sr
		} else {
			targets = append(targets, slot)
		}
	}
	return previous, targets
}

// recognize runs bounded recognition tasks, chaining onto the pending
// frame whenever one arrived during the previous task. Empty targets
// mean every slot is re-evaluated, so a coalesced frame always
// produces a fresh prediction.
func (s *Service) recognize(session *Session, f *vision.Frame, gen uint64,
	targets []models.SlotID, previous map[models.SlotID]models.WeaponSlotResult) {

	frame := f
	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecognitionTimeout)
		result, err := s.recognizer.Recognize(ctx, frame, targets, previous, false)
		cancel()

		s.mu.Lock()
		if gen != s.generation {
			s.running = false
			s.mu.Unlock()
			return
		}

		applied := false
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			s.logger.Warn("weapon recognition timed out", slog.Duration("timeout", s.cfg.RecognitionTimeout))
		case err != nil:
			s.logger.Warn("weapon recognition failed", slog.String("error", err.Error()))
		default:
			s.applyLocked(session, result)
			applied = true
		}

		next := s.pending
		s.pending = nil
		if next == nil {
			if applied && s.allMatchedLocked() {
				session.Done = true
				s.running = false
				s.mu.Unlock()
				s.publish(session, true)
				return
			}
			s.running = false
			s.mu.Unlock()
			if applied {
				s.publish(session, false)
			}
			return
		}

		previous, targets = s.snapshotTargetsLocked()
		s.mu.Unlock()
		if applied {
			s.publish(session, false)
		}
		frame = next
	}
}

// finalize runs the one-shot pass after the detection window closes:
// re-evaluate every still-unmatched slot with the unmatched report
// enabled, then fill the rest with the unknown sentinel.
func (s *Service) finalize(session *Session, f *vision.Frame, gen uint64) {
	s.mu.Lock()
	previous, targets := s.snapshotTargetsLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FinalizeTimeout)
	result, err := s.recognizer.Recognize(ctx, f, targets, previous, true)
	cancel()

	s.mu.Lock()
	if gen != s.generation {
		s.running = false
		s.pending = nil
		s.mu.Unlock()
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("finalize recognition timed out, defaulting to unknown",
			slog.Duration("timeout", s.cfg.FinalizeTimeout))
	case err != nil:
		s.logger.Warn("finalize recognition failed", slog.String("error", err.Error()))
	default:
		s.applyLocked(session, result)
	}
	s.fillUnknownLocked(session)
	session.Done = true
	s.running = false
	s.pending = nil
	s.mu.Unlock()

	s.publish(session, true)
}

// applyLocked copies matched slots into the session metadata. Caller
// holds the lock.
func (s *Service) applyLocked(session *Session, result models.WeaponRecognitionResult) {
	for slot, sr := range result.SlotResults {
		if sr.IsUnmatched {
			continue
		}
		s.results[slot] = sr
		idx := slot.TeamIndex()
		if slot.IsAlly() {
			session.Metadata.Allies[idx] = sr.PredictedWeapon
		} else {
			session.Metadata.Enemies[idx] = sr.PredictedWeapon
		}
	}
}

// fillUnknownLocked writes the unknown sentinel into every slot that
// never matched. Caller holds the lock.
func (s *Service) fillUnknownLocked(session *Session) {
	for _, slot := range models.AllSlots {
		if sr, ok := s.results[slot]; ok && !sr.IsUnmatched {
			continue
		}
		idx := slot.TeamIndex()
		if slot.IsAlly() {
			if session.Metadata.Allies[idx] == "" {
				session.Metadata.Allies[idx] = models.UnknownWeapon
			}
		} else {
			if session.Metadata.Enemies[idx] == "" {
				session.Metadata.Enemies[idx] = models.UnknownWeapon
			}
		}
	}
}

func (s *Service) allMatchedLocked() bool {
	for _, slot := range models.AllSlots {
		sr, ok := s.results[slot]
		if !ok || sr.IsUnmatched {
			return false
		}
	}
	return true
}

func (s *Service) publish(session *Session, isFinal bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TypeRecorderMatch, map[string]any{
		"event":    matchEventWeapons,
		"is_final": isFinal,
		"allies":   session.Metadata.Allies[:],
		"enemies":  session.Metadata.Enemies[:],
	})
	s.bus.Publish(events.TypeRecorderMetadataUpdated, map[string]any{
		"metadata": session.Metadata.ToSidecar(),
	})
}
