package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownCommand is returned for command names with no handler.
var ErrUnknownCommand = fmt.Errorf("unknown command")

// CommandHandler executes one named command.
type CommandHandler func(ctx context.Context, payload map[string]any) (any, error)

// CommandResult is the tagged outcome of a command.
type CommandResult struct {
	Value any
	Err   error
}

// Future resolves to a CommandResult exactly once.
type Future struct {
	id string
	ch chan CommandResult
}

// ID returns the command's correlation identifier.
func (f *Future) ID() string { return f.id }

// Await blocks for the result or the caller's context.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case res := <-f.ch:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pendingCommand struct {
	name    string
	payload map[string]any
	future  *Future
}

// CommandBus dispatches named commands to registered handlers. Commands
// run sequentially on the executor goroutine; submitting never blocks
// the caller beyond queue admission.
type CommandBus struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	queue    chan pendingCommand
	logger   *slog.Logger
}

// NewCommandBus builds a command bus with a fixed submission queue.
func NewCommandBus(queueSize int, logger *slog.Logger) *CommandBus {
	if queueSize < 1 {
		queueSize = 64
	}
	return &CommandBus{
		handlers: make(map[string]CommandHandler),
		queue:    make(chan pendingCommand, queueSize),
		logger:   logger.With("component", "commands"),
	}
}

// Register installs the handler for a command name, replacing any
// previous one.
func (b *CommandBus) Register(name string, h CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = h
}

// Submit enqueues a command and returns its future. Unknown names
// resolve immediately with ErrUnknownCommand.
func (b *CommandBus) Submit(ctx context.Context, name string, payload map[string]any) *Future {
	future := &Future{id: uuid.NewString(), ch: make(chan CommandResult, 1)}

	b.mu.RLock()
	_, known := b.handlers[name]
	b.mu.RUnlock()
	if !known {
		future.ch <- CommandResult{Err: fmt.Errorf("%w: %s", ErrUnknownCommand, name)}
		return future
	}

	cmd := pendingCommand{name: name, payload: payload, future: future}
	select {
	case b.queue <- cmd:
	case <-ctx.Done():
		future.ch <- CommandResult{Err: ctx.Err()}
	}
	return future
}

// Run executes commands until the context is cancelled. Handlers run
// one at a time in submission order.
func (b *CommandBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.queue:
			b.execute(ctx, cmd)
		}
	}
}

func (b *CommandBus) execute(ctx context.Context, cmd pendingCommand) {
	b.mu.RLock()
	handler := b.handlers[cmd.name]
	b.mu.RUnlock()
	if handler == nil {
		cmd.future.ch <- CommandResult{Err: fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.name)}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("command handler panicked",
				slog.String("command", cmd.name),
				slog.Any("panic", r))
			cmd.future.ch <- CommandResult{Err: fmt.Errorf("command %s panicked: %v", cmd.name, r)}
		}
	}()

	value, err := handler(ctx, cmd.payload)
	if err != nil {
		b.logger.Warn("command failed",
			slog.String("command", cmd.name),
			slog.String("error", err.Error()))
	}
	cmd.future.ch <- CommandResult{Value: value, Err: err}
}
