package ports

import (
	"context"
	"io"
)

// Tracer starts spans around build phases.
//
//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Tracer interface {
	// Start creates a span that is a child of the span in ctx, if any.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// EmitPlan announces the phases that are about to run.
	EmitPlan(ctx context.Context, names []string, targets []string)
}

// Span is a unit of work. Tool output written to it is forwarded to the renderer.
type Span interface {
	io.Writer

	// End completes the span.
	End()

	// RecordError marks the span as failed.
	RecordError(err error)

	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds optional span settings.
type SpanConfig struct {
	Attributes map[string]any
}

// SpanOption configures a span.
type SpanOption func(*SpanConfig)

// WithAttribute sets an attribute when the span starts.
func WithAttribute(key string, value any) SpanOption {
	return func(c *SpanConfig) {
		if c.Attributes == nil {
			c.Attributes = make(map[string]any)
		}
		c.Attributes[key] = value
	}
}
