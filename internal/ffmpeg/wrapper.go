// Package ffmpeg shells out to FFmpeg/FFprobe for the edit pipeline:
// clip merging, metadata/subtitle/thumbnail embedding, volume and
// audio-track operations.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Command is one FFmpeg invocation.
type Command struct {
	Binary string
	Args   []string

	mu      sync.RWMutex
	cmd     *exec.Cmd
	started time.Time

	stderrMu    sync.Mutex
	stderrLines []string
}

const stderrKeepLines = 50

// CommandBuilder assembles FFmpeg arguments with a fluent API. Inputs
// keep their per-input arguments in order.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputs     []commandInput
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

type commandInput struct {
	args []string
	path string
}

// NewCommandBuilder starts a builder for the given binary.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{binary: ffmpegPath, logLevel: "error"}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Input adds an input with optional per-input arguments preceding it.
func (b *CommandBuilder) Input(path string, args ...string) *CommandBuilder {
	b.inputs = append(b.inputs, commandInput{args: args, path: path})
	return b
}

// VideoFilter adds a -vf filter; multiple filters are comma-joined.
func (b *CommandBuilder) VideoFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// Map adds a stream mapping.
func (b *CommandBuilder) Map(spec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-map", spec)
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// CopyStreams copies every stream without re-encoding.
func (b *CommandBuilder) CopyStreams() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c", "copy")
	return b
}

// AudioFilter adds an -af filter.
func (b *CommandBuilder) AudioFilter(filter string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-af", filter)
	return b
}

// Metadata sets one output metadata key.
func (b *CommandBuilder) Metadata(key, value string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-metadata", key+"="+value)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build assembles the final argument list.
func (b *CommandBuilder) Build() *Command {
	args := []string{"-loglevel", b.logLevel}
	args = append(args, b.globalArgs...)
	if b.overwrite {
		args = append(args, "-y")
	}
	for _, in := range b.inputs {
		args = append(args, in.args...)
		args = append(args, "-i", in.path)
	}
	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}
	args = append(args, b.outputArgs...)
	if b.output != "" {
		args = append(args, b.output)
	}
	return &Command{Binary: b.binary, Args: args}
}

// String returns the command line for logging.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Run executes the command, capturing a stderr tail for diagnostics.
func (c *Command) Run(ctx context.Context) error {
	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("getting stderr pipe: %w", err)
	}
	c.mu.Unlock()

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}
	done := make(chan struct{})
	go c.captureStderr(stderr, done)
	waitErr := c.cmd.Wait()
	<-done

	if waitErr != nil {
		if tail := c.StderrTail(); tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", waitErr, tail)
		}
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	return nil
}

// CombinedOutput runs the command and returns stdout; stderr goes to
// the captured tail.
func (c *Command) CombinedOutput(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()
	cmd := c.cmd
	c.mu.Unlock()
	return cmd.Output()
}

// Duration returns how long the command has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

func (c *Command) captureStderr(r io.Reader, done chan struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.stderrMu.Lock()
		if len(c.stderrLines) >= stderrKeepLines {
			c.stderrLines = c.stderrLines[1:]
		}
		c.stderrLines = append(c.stderrLines, scanner.Text())
		c.stderrMu.Unlock()
	}
}

// StderrTail returns the last captured stderr line.
func (c *Command) StderrTail() string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	if len(c.stderrLines) == 0 {
		return ""
	}
	return c.stderrLines[len(c.stderrLines)-1]
}

// StderrLines returns a copy of the captured stderr tail.
func (c *Command) StderrLines() []string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}
