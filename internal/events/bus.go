// Package events provides the in-process pub/sub bus and the
// request/response command bus that decouple the frame pipeline from
// the HTTP boundary and other observers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Wire event types published on the bus.
const (
	TypeRecorderState           = "recorder.state"
	TypeRecorderMatch           = "recorder.match"
	TypeRecorderMetadataUpdated = "recorder.metadata_updated"
	TypeRecorderReset           = "recorder.reset"
	TypeRecorderOperationStatus = "recorder.operation_status"

	TypeAssetRecordedSaved           = "asset.recorded.saved"
	TypeAssetRecordedMetadataUpdated = "asset.recorded.metadata_updated"
	TypeAssetRecordedSubtitleUpdated = "asset.recorded.subtitle_updated"
	TypeAssetRecordedDeleted         = "asset.recorded.deleted"
	TypeAssetEditedSaved             = "asset.edited.saved"
	TypeAssetEditedDeleted           = "asset.edited.deleted"

	TypeProgressStart      = "progress.start"
	TypeProgressTotal      = "progress.total"
	TypeProgressStage      = "progress.stage"
	TypeProgressAdvance    = "progress.advance"
	TypeProgressFinish     = "progress.finish"
	TypeProgressItems      = "progress.items"
	TypeProgressItemStage  = "progress.item_stage"
	TypeProgressItemFinish = "progress.item_finish"
)

// Event is one bus message. Payload values are JSON-serializable
// primitives or nested mappings.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus is the process-wide publish-subscribe hub. Publication never
// blocks: a subscriber whose queue is full loses its oldest events.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription
	queueSize int
	closed    bool
	logger    *slog.Logger
}

// NewBus builds a bus with the given default per-subscriber queue size.
func NewBus(queueSize int, logger *slog.Logger) *Bus {
	return &Bus{
		subs:      make(map[string]*Subscription),
		queueSize: queueSize,
		logger:    logger.With("component", "events"),
	}
}

// Subscribe creates a subscription with the bus default queue size. An
// empty type list receives every event; otherwise the list is a filter.
func (b *Bus) Subscribe(types ...string) *Subscription {
	return b.SubscribeQueue(b.queueSize, types...)
}

// SubscribeQueue creates a subscription with an explicit queue size.
func (b *Bus) SubscribeQueue(queueSize int, types ...string) *Subscription {
	if queueSize < 1 {
		queueSize = b.queueSize
	}

	sub := &Subscription{
		id:       ulid.Make().String(),
		bus:      b,
		max:      queueSize,
		notifyCh: make(chan struct{}, 1),
	}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.closed = true
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers an event to every matching subscriber.
func (b *Bus) Publish(eventType string, payload map[string]any) {
	ev := Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.offer(ev)
	}
}

// Close drops all subscriptions; further publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.markClosed()
	}
	b.subs = make(map[string]*Subscription)
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one subscriber's bounded event queue.
type Subscription struct {
	id  string
	bus *Bus
	// types is the filter set; nil receives everything.
	types map[string]struct{}

	mu       sync.Mutex
	queue    []Event
	max      int
	dropped  uint64
	closed   bool
	notifyCh chan struct{}
}

// ID returns the subscription's opaque identifier.
func (s *Subscription) ID() string { return s.id }

func (s *Subscription) offer(ev Event) {
	if s.types != nil {
		if _, ok := s.types[ev.Type]; !ok {
			return
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.max {
		drop := len(s.queue) - s.max + 1
		s.queue = append(s.queue[:0], s.queue[drop:]...)
		s.dropped += uint64(drop)
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Poll drains up to max events without blocking.
func (s *Subscription) Poll(max int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max <= 0 || max > len(s.queue) {
		max = len(s.queue)
	}
	if max == 0 {
		return nil
	}
	out := make([]Event, max)
	copy(out, s.queue[:max])
	s.queue = append(s.queue[:0], s.queue[max:]...)
	return out
}

// Dropped returns how many events were lost to queue overflow.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Notify signals when new events may be available. Spurious wakeups
// are possible; pair it with Poll.
func (s *Subscription) Notify() <-chan struct{} { return s.notifyCh }

// Close releases the subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.unsubscribe(s.id)
	}
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}
