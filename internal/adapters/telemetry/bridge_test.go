package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/unibuild/internal/adapters/telemetry"
)

func TestBridge_NestedPhaseSpans(t *testing.T) {
	r := newRecordingRenderer()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(r)))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx, target := tracer.Start(context.Background(), "zstd")
	_, phase := tracer.Start(ctx, "zstd:arm64:configure")
	phase.End()
	target.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []string{"zstd", "zstd:arm64:configure"}, r.started)

	targetID := target.SpanContext().SpanID().String()
	phaseID := phase.SpanContext().SpanID().String()
	assert.Empty(t, r.parents[targetID])
	assert.Equal(t, targetID, r.parents[phaseID])

	require.Contains(t, r.finished, phaseID)
	require.Contains(t, r.finished, targetID)
	assert.NoError(t, r.finished[phaseID])
	assert.NoError(t, r.finished[targetID])
}

func TestBridge_FailedSpans(t *testing.T) {
	r := newRecordingRenderer()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(r)))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	_, described := tracer.Start(context.Background(), "zstd:x86_64:build")
	described.SetStatus(codes.Error, "command failed")
	described.End()

	_, recorded := tracer.Start(context.Background(), "zstd:source")
	recorded.RecordError(errors.New("checksum mismatch"))
	recorded.SetStatus(codes.Error, "")
	recorded.End()

	_, bare := tracer.Start(context.Background(), "zstd:merge")
	bare.SetStatus(codes.Error, "")
	bare.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.EqualError(t, r.finished[described.SpanContext().SpanID().String()], "command failed")
	assert.EqualError(t, r.finished[recorded.SpanContext().SpanID().String()], "checksum mismatch")
	assert.EqualError(t, r.finished[bare.SpanContext().SpanID().String()], "zstd:merge failed")
}

func TestBridge_NilRenderer(t *testing.T) {
	bridge := telemetry.NewBridge(nil)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	_, span := tp.Tracer("test").Start(context.Background(), "zstd")
	span.End()

	require.NoError(t, bridge.ForceFlush(context.Background()))
	require.NoError(t, bridge.Shutdown(context.Background()))
}
