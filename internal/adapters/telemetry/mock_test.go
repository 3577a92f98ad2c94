package telemetry_test

import (
	"context"
	"sync"
	"time"
)

// recordingRenderer is a ports.Renderer that keeps what it was told.
type recordingRenderer struct {
	mu       sync.Mutex
	plans    int
	started  []string
	parents  map[string]string
	logs     [][]byte
	finished map[string]error
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		parents:  make(map[string]string),
		finished: make(map[string]error),
	}
}

func (r *recordingRenderer) Start(context.Context) error { return nil }
func (r *recordingRenderer) Stop() error                 { return nil }
func (r *recordingRenderer) Wait() error                 { return nil }

func (r *recordingRenderer) OnPlanEmit([]string, map[string][]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans++
}

func (r *recordingRenderer) OnTaskStart(spanID, parentID, name string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
	r.parents[spanID] = parentID
}

func (r *recordingRenderer) OnTaskLog(_ string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, data)
}

func (r *recordingRenderer) OnTaskComplete(spanID string, _ time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[spanID] = err
}

func (r *recordingRenderer) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, l := range r.logs {
		out = append(out, l...)
	}
	return string(out)
}
