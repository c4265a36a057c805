package recorder

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine() *StateMachine {
	return NewStateMachine(slog.New(slog.DiscardHandler))
}

func TestTransitionTable(t *testing.T) {
	states := []State{StateStopped, StateRecording, StatePaused}
	eventsAll := []Event{EventStart, EventPause, EventResume, EventStop}

	expected := map[State]map[Event]State{
		StateStopped:   {EventStart: StateRecording},
		StateRecording: {EventPause: StatePaused, EventStop: StateStopped},
		StatePaused:    {EventResume: StateRecording, EventStop: StateStopped},
	}

	for _, from := range states {
		for _, ev := range eventsAll {
			m := newMachine()
			m.state = from

			got, transitioned := m.Apply(ev)
			want, ok := expected[from][ev]
			if ok {
				assert.True(t, transitioned, "%s + %s", from, ev)
				assert.Equal(t, want, got)
			} else {
				assert.False(t, transitioned, "%s + %s must be a no-op", from, ev)
				assert.Equal(t, from, got)
			}
		}
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	m := newMachine()
	var order []string
	m.OnTransition(func(State, Event, State) { order = append(order, "first") })
	m.OnTransition(func(State, Event, State) { order = append(order, "second") })

	_, ok := m.Apply(EventStart)
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestListenerPanicDoesNotRollBack(t *testing.T) {
	m := newMachine()
	var called bool
	m.OnTransition(func(State, Event, State) { panic("listener bug") })
	m.OnTransition(func(_ State, _ Event, to State) { called = true; assert.Equal(t, StateRecording, to) })

	state, ok := m.Apply(EventStart)
	require.True(t, ok)
	assert.Equal(t, StateRecording, state)
	assert.Equal(t, StateRecording, m.State())
	assert.True(t, called, "later listeners still fire")
}

func TestNoOpDoesNotNotify(t *testing.T) {
	m := newMachine()
	calls := 0
	m.OnTransition(func(State, Event, State) { calls++ })

	_, ok := m.Apply(EventPause)
	assert.False(t, ok)
	assert.Zero(t, calls)
}

func TestWire(t *testing.T) {
	assert.Equal(t, "RECORDING", StateRecording.Wire())
	assert.Equal(t, "STOPPED", StateStopped.Wire())
	assert.Equal(t, "PAUSED", StatePaused.Wire())
}
