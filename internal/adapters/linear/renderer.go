// Package linear provides a synchronous, line-buffered renderer for build phases.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/unibuild/internal/ui/output"
	"go.trai.ch/unibuild/internal/ui/style"
)

// Renderer implements ports.Renderer with chronological, prefixed output.
// Phase spans are named target:arch:phase and tool output is printed line by line
// with that name as prefix.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	tasks   map[string]*taskState // spanID -> phase state
	buffers map[string]*bytes.Buffer
}

type taskState struct {
	name      string
	label     string
	startTime time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColorProfile selects how phase labels and status symbols are colored.
func WithColorProfile(profile func() termenv.Profile) Option {
	return func(r *Renderer) {
		r.output = output.NewWithProfile(r.stderr, profile)
	}
}

// NewRenderer creates a new Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer, opts ...Option) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	r := &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  output.NewWithProfile(stderr, output.ColorProfileANSI),
		tasks:   make(map[string]*taskState),
		buffers: make(map[string]*bytes.Buffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start is a no-op for the linear renderer.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}

	return nil
}

// Wait is a no-op for the linear renderer.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned passes.
func (r *Renderer) OnPlanEmit(tasks []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.stderr, "Building %s in %d pass(es): %s\n",
		strings.Join(targets, ", "), len(tasks), strings.Join(tasks, ", "))
}

// OnTaskStart prints a phase start message.
func (r *Renderer) OnTaskStart(spanID, _ /* parentID */, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task := &taskState{
		name:      name,
		label:     r.label(name),
		startTime: startTime,
	}
	r.tasks[spanID] = task
	r.buffers[spanID] = new(bytes.Buffer)

	arrow := r.output.String(style.Arrow).Faint().String()
	_, _ = fmt.Fprintf(r.stderr, "%s %s Starting...\n", task.label, arrow)
}

// OnTaskLog buffers tool output and prints complete lines with the phase prefix.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				newBuf := new(bytes.Buffer)
				newBuf.Write(line)
				r.buffers[spanID] = newBuf
			}
			break
		}

		r.printLineLocked(task.label, line)
	}
}

// OnTaskComplete flushes the remaining buffer and prints the completion status.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	r.flushBufferLocked(spanID)

	duration := endTime.Sub(task.startTime).Round(time.Millisecond)

	if err != nil {
		symbol := r.output.String(style.Cross).Foreground(r.output.Color(string(style.Red))).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n",
			task.label, symbol, duration, err)
	} else {
		symbol := r.output.String(style.Check).Foreground(r.output.Color(string(style.Green))).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n",
			task.label, symbol, duration)
	}

	delete(r.tasks, spanID)
	delete(r.buffers, spanID)
}

// label renders [target:arch:phase] with the architecture segment in its accent color.
func (r *Renderer) label(name string) string {
	parts := strings.Split(name, ":")
	for i, p := range parts {
		switch {
		case i == 0:
			parts[i] = r.output.String(p).Bold().String()
		case style.ArchColor(p) != style.Slate:
			parts[i] = r.output.String(p).Foreground(r.output.Color(string(style.ArchColor(p)))).String()
		default:
			parts[i] = r.output.String(p).Faint().String()
		}
	}
	return "[" + strings.Join(parts, ":") + "]"
}

// flushBufferLocked prints any partial line left for a phase.
// Must be called with r.mu held.
func (r *Renderer) flushBufferLocked(spanID string) {
	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	if buf.Len() > 0 {
		r.printLineLocked(task.label, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked prints a line with the phase prefix.
// Must be called with r.mu held.
func (r *Renderer) printLineLocked(label string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) == 0 {
		return
	}

	_, _ = fmt.Fprintf(r.stdout, "%s %s\n", label, string(line))
}
