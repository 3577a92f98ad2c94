package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/unibuild/internal/core/ports"
)

// LogBufferSize determines the size of the async log channel.
const LogBufferSize = 4096

// OTelTracer is a concrete implementation of ports.Tracer using OpenTelemetry.
type OTelTracer struct {
	tracer   trace.Tracer
	renderer ports.Renderer
	logChan  chan any
	done     chan struct{}
	mu       sync.RWMutex

	// sendMu guards closed and the sends on logChan.
	sendMu sync.RWMutex
	closed bool
}

// NewOTelTracer creates a new OTelTracer with the given instrumentation name.
func NewOTelTracer(name string) *OTelTracer {
	t := &OTelTracer{
		tracer:  otel.Tracer(name),
		logChan: make(chan any, LogBufferSize),
		done:    make(chan struct{}),
	}
	go t.runLoop()
	return t
}

func (t *OTelTracer) runLoop() {
	defer close(t.done)
	for msg := range t.logChan {
		t.mu.RLock()
		r := t.renderer
		t.mu.RUnlock()

		if r == nil {
			continue
		}

		switch m := msg.(type) {
		case MsgTaskLog:
			r.OnTaskLog(m.SpanID, m.Data)
		case MsgPlan:
			r.OnPlanEmit(m.Tasks, m.Dependencies, m.Targets)
		}
	}
}

// Shutdown stops the background log processor after delivering queued messages.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	t.sendMu.Lock()
	if !t.closed {
		t.closed = true
		close(t.logChan)
	}
	t.sendMu.Unlock()

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRenderer sets the renderer that receives plans and tool output.
func (t *OTelTracer) WithRenderer(r ports.Renderer) *OTelTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderer = r
	return t
}

// Start creates a new span.
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, span := t.tracer.Start(ctx, name)
	s := &OTelSpan{span: span}
	for k, v := range cfg.Attributes {
		s.SetAttribute(k, v)
	}

	t.mu.RLock()
	r := t.renderer
	t.mu.RUnlock()

	if r != nil {
		spanID := span.SpanContext().SpanID().String()
		s.batcher = NewOutputBatcher(0, 0, func(data []byte) {
			t.send(MsgTaskLog{SpanID: spanID, Data: data}, false)
		})
	}

	return ctx, s
}

// EmitPlan records the planned passes on the current span and forwards them to the renderer.
// Passes run sequentially, so each one depends on its predecessor.
func (t *OTelTracer) EmitPlan(ctx context.Context, names, targets []string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("plan_emitted", trace.WithAttributes(
			attribute.StringSlice("passes", names),
			attribute.StringSlice("targets", targets),
		))
	}

	t.mu.RLock()
	r := t.renderer
	t.mu.RUnlock()

	if r == nil {
		return
	}

	deps := make(map[string][]string, len(names))
	for i := 1; i < len(names); i++ {
		deps[names[i]] = []string{names[i-1]}
	}
	// The plan must reach the renderer before any output, so this send may block.
	t.send(MsgPlan{Tasks: names, Dependencies: deps, Targets: targets}, true)
}

func (t *OTelTracer) send(msg any, block bool) {
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.closed {
		return
	}
	if block {
		t.logChan <- msg
		return
	}
	select {
	case t.logChan <- msg:
	default:
		// Drop output rather than stall the build tool.
	}
}

// OTelSpan is a concrete implementation of ports.Span using OpenTelemetry.
type OTelSpan struct {
	span    trace.Span
	batcher *OutputBatcher
}

// End flushes buffered output and completes the span.
func (s *OTelSpan) End() {
	if s.batcher != nil {
		_ = s.batcher.Close()
	}
	s.span.End()
}

// RecordError records an error for the span.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	case fmt.Stringer:
		s.span.SetAttributes(attribute.String(key, v.String()))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// Write satisfies io.Writer by adding a log event to the span or writing to the batcher.
func (s *OTelSpan) Write(p []byte) (n int, err error) {
	if s.batcher != nil {
		return s.batcher.Write(p)
	}
	s.span.AddEvent("log", trace.WithAttributes(attribute.String("message", string(p))))
	return len(p), nil
}
