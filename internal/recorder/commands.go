package recorder

import (
	"context"

	"github.com/saw4405/splat-replay/internal/events"
)

// Command names for recorder control on the command bus.
const (
	CmdStart  = "recorder.start"
	CmdStop   = "recorder.stop"
	CmdPause  = "recorder.pause"
	CmdResume = "recorder.resume"
	CmdCancel = "recorder.cancel"
)

// RegisterCommands installs the manual-control handlers on the command
// bus. Handlers run sequentially, so manual operations never race each
// other.
func RegisterCommands(cb *events.CommandBus, r *AutoRecorder) {
	type op struct {
		name string
		run  func(context.Context) error
	}
	for _, o := range []op{
		{CmdStart, r.ManualStart},
		{CmdStop, r.ManualStop},
		{CmdPause, r.ManualPause},
		{CmdResume, r.ManualResume},
		{CmdCancel, r.ManualCancel},
	} {
		run := o.run
		cb.Register(o.name, func(ctx context.Context, _ map[string]any) (any, error) {
			return nil, run(ctx)
		})
	}
}

// CommandClient adapts the command bus back to the manual-control
// surface. Control mutations dispatch through the bus; state queries
// read the machine directly.
type CommandClient struct {
	cb  *events.CommandBus
	rec *AutoRecorder
}

// NewCommandClient builds the adapter.
func NewCommandClient(cb *events.CommandBus, rec *AutoRecorder) *CommandClient {
	return &CommandClient{cb: cb, rec: rec}
}

// State returns the current recording state.
func (c *CommandClient) State() State { return c.rec.State() }

// LoopRunning reports whether the capture loop is active.
func (c *CommandClient) LoopRunning() bool { return c.rec.LoopRunning() }

func (c *CommandClient) submit(ctx context.Context, name string) error {
	_, err := c.cb.Submit(ctx, name, nil).Await(ctx)
	return err
}

// ManualStart dispatches a start command.
func (c *CommandClient) ManualStart(ctx context.Context) error { return c.submit(ctx, CmdStart) }

// ManualStop dispatches a stop command.
func (c *CommandClient) ManualStop(ctx context.Context) error { return c.submit(ctx, CmdStop) }

// ManualPause dispatches a pause command.
func (c *CommandClient) ManualPause(ctx context.Context) error { return c.submit(ctx, CmdPause) }

// ManualResume dispatches a resume command.
func (c *CommandClient) ManualResume(ctx context.Context) error { return c.submit(ctx, CmdResume) }

// ManualCancel dispatches a cancel command.
func (c *CommandClient) ManualCancel(ctx context.Context) error { return c.submit(ctx, CmdCancel) }
