package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/unibuild/internal/core/ports"
)

// Names used by span.RecordError for the exception event.
const (
	exceptionEvent   = "exception"
	exceptionMessage = "exception.message"
)

// Bridge is an sdktrace.SpanProcessor that reports target and phase spans
// to a Renderer as they start and end.
type Bridge struct {
	renderer ports.Renderer
}

var _ sdktrace.SpanProcessor = (*Bridge)(nil)

// NewBridge returns a Bridge feeding renderer. A nil renderer disables it.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart announces the span, nested under the span found in parent.
func (b *Bridge) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	id, ok := spanID(s.SpanContext())
	if !ok || b.renderer == nil {
		return
	}
	parentID, _ := spanID(trace.SpanContextFromContext(parent))
	b.renderer.OnTaskStart(id, parentID, s.Name(), s.StartTime())
}

// OnEnd reports the span outcome.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	id, ok := spanID(s.SpanContext())
	if !ok || b.renderer == nil {
		return
	}
	b.renderer.OnTaskComplete(id, s.EndTime(), spanError(s))
}

// ForceFlush does nothing; spans are reported synchronously.
func (b *Bridge) ForceFlush(context.Context) error { return nil }

// Shutdown does nothing.
func (b *Bridge) Shutdown(context.Context) error { return nil }

func spanID(sc trace.SpanContext) (string, bool) {
	if !sc.IsValid() {
		return "", false
	}
	return sc.SpanID().String(), true
}

// spanError rebuilds the failure of an errored span. The status description
// wins, then the message of the last recorded exception, then the span name.
func spanError(s sdktrace.ReadOnlySpan) error {
	status := s.Status()
	if status.Code != codes.Error {
		return nil
	}
	if status.Description != "" {
		return errors.New(status.Description)
	}

	events := s.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name != exceptionEvent {
			continue
		}
		for _, kv := range events[i].Attributes {
			if kv.Key == exceptionMessage {
				return errors.New(kv.Value.AsString())
			}
		}
	}
	return errors.New(s.Name() + " failed")
}
