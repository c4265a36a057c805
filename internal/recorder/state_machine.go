// Package recorder drives the external screen recorder from frame
// analysis: a three-state machine, the capture loop orchestrator, and
// the OBS WebSocket adapter.
package recorder

import (
	"log/slog"
	"strings"
	"sync"
)

// State is the recording state.
type State string

const (
	StateStopped   State = "stopped"
	StateRecording State = "recording"
	StatePaused    State = "paused"
)

// Wire renders the state the way the event bus and HTTP surface carry
// it.
func (s State) Wire() string { return strings.ToUpper(string(s)) }

// Event drives state transitions.
type Event string

const (
	EventStart  Event = "start"
	EventPause  Event = "pause"
	EventResume Event = "resume"
	EventStop   Event = "stop"
)

// transitions is the full table; pairs not listed are no-ops.
var transitions = map[State]map[Event]State{
	StateStopped: {
		EventStart: StateRecording,
	},
	StateRecording: {
		EventPause: StatePaused,
		EventStop:  StateStopped,
	},
	StatePaused: {
		EventResume: StateRecording,
		EventStop:   StateStopped,
	},
}

// TransitionListener observes applied transitions. Listeners run in
// registration order; a panicking listener does not stop the others and
// never rolls back the transition.
type TransitionListener func(from State, ev Event, to State)

// StateMachine is the deterministic three-state recording machine.
type StateMachine struct {
	mu        sync.RWMutex
	state     State
	listeners []TransitionListener
	logger    *slog.Logger
}

// NewStateMachine starts in the stopped state.
func NewStateMachine(logger *slog.Logger) *StateMachine {
	return &StateMachine{
		state:  StateStopped,
		logger: logger.With("component", "recorder.state"),
	}
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnTransition registers a listener.
func (m *StateMachine) OnTransition(l TransitionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Apply processes one event. Unknown (state, event) pairs are no-ops
// and report false.
func (m *StateMachine) Apply(ev Event) (State, bool) {
	m.mu.Lock()
	from := m.state
	to, ok := transitions[from][ev]
	if !ok {
		m.mu.Unlock()
		return from, false
	}
	m.state = to
	listeners := append([]TransitionListener(nil), m.listeners...)
	m.mu.Unlock()

	m.logger.Debug("state transition",
		slog.String("from", string(from)),
		slog.String("event", string(ev)),
		slog.String("to", string(to)))

	for _, l := range listeners {
		m.invoke(l, from, ev, to)
	}
	return to, true
}

func (m *StateMachine) invoke(l TransitionListener, from State, ev Event, to State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition listener panicked", slog.Any("panic", r))
		}
	}()
	l(from, ev, to)
}
