package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation so that phase spans
// and tool output reach the terminal through one event stream.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and prepare for shutdown.
	// It should flush any buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	// For synchronous renderers, this may return immediately.
	Wait() error

	// OnPlanEmit is called when the orchestrator has planned a run.
	// tasks: the passes to run, in execution order
	// deps: pass dependencies (pass -> passes it waits for)
	// targets: the user-requested targets
	OnPlanEmit(tasks []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a phase begins.
	// spanID: unique identifier for this phase
	// parentID: spanID of the enclosing span (empty if root)
	// name: human-readable phase name
	// startTime: when the phase started
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a tool emits output.
	// spanID: identifier for the phase
	// data: raw log bytes (may contain partial lines or ANSI sequences)
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a phase finishes.
	// spanID: identifier for the phase
	// endTime: when the phase completed
	// err: nil if successful, error otherwise
	OnTaskComplete(spanID string, endTime time.Time, err error)
}
