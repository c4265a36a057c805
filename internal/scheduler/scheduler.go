// Package scheduler runs the edit/upload pipeline at time-slot
// boundaries using a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/saw4405/splat-replay/internal/config"
)

// ErrBusy is returned when a run is requested while one is in flight.
var ErrBusy = errors.New("pipeline run already in flight")

// Task is one stage of the scheduled pipeline.
type Task interface {
	Run(ctx context.Context) error
}

// Scheduler fires the edit task and then the upload task whenever the
// configured cron expression matches. Overlapping runs are skipped.
type Scheduler struct {
	mu sync.Mutex

	editor   Task
	uploader Task
	logger   *slog.Logger

	schedule cron.Schedule
	running  atomic.Bool

	// now is swapped out in tests.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New parses the configured cron expression (6-field, with seconds)
// and builds the scheduler. An empty expression defaults to the top of
// every hour.
func New(cfg config.SchedulerConfig, editor, uploader Task, logger *slog.Logger) (*Scheduler, error) {
	expr := cfg.Cron
	if expr == "" {
		expr = "0 0 * * * *"
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &Scheduler{
		editor:   editor,
		uploader: uploader,
		logger:   logger.With("component", "scheduler"),
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// Start begins the background loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started",
		slog.Time("next_run", s.schedule.Next(s.now())))
	return nil
}

// Stop stops the loop and waits for it to exit. An in-flight pipeline
// run finishes on its own cancelled context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunNow(s.ctx); err != nil && !errors.Is(err, ErrBusy) {
				s.logger.Error("scheduled run failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// NextRun reports when the schedule fires next.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(s.now())
}

// Running reports whether a pipeline run is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// RunNow executes edit then upload once. The upload stage runs even
// when editing partially failed, so finished slots still go out.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	s.logger.Info("pipeline run starting")
	started := s.now()

	editErr := s.editor.Run(ctx)
	if editErr != nil {
		s.logger.Error("edit stage failed", slog.String("error", editErr.Error()))
	}
	uploadErr := s.uploader.Run(ctx)
	if uploadErr != nil {
		s.logger.Error("upload stage failed", slog.String("error", uploadErr.Error()))
	}

	s.logger.Info("pipeline run finished",
		slog.Duration("elapsed", s.now().Sub(started)),
		slog.Bool("success", editErr == nil && uploadErr == nil))
	return errors.Join(editErr, uploadErr)
}
