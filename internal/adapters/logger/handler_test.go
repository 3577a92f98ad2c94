package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/unibuild/internal/adapters/logger"
)

func newHandler(t *testing.T, level slog.Level) (*logger.PrettyHandler, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	return logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: level}), buf
}

func TestPrettyHandler_Handle_Levels(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		msg        string
		goldenName string
	}{
		{name: "info level", level: slog.LevelInfo, msg: "building zlib", goldenName: "handler_info"},
		{name: "warn level", level: slog.LevelWarn, msg: "files differ", goldenName: "handler_warn"},
		{name: "error level", level: slog.LevelError, msg: "build failed", goldenName: "handler_error"},
		{name: "debug level filtered", level: slog.LevelDebug, msg: "filtered", goldenName: "handler_debug_filtered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, buf := newHandler(t, slog.LevelInfo)
			slog.New(handler).Log(t.Context(), tt.level, tt.msg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_Attrs(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h slog.Handler) slog.Handler
		attrs      []any
		goldenName string
	}{
		{
			name:       "record attributes",
			setup:      func(h slog.Handler) slog.Handler { return h },
			attrs:      []any{"target", "zlib", "jobs", 8},
			goldenName: "handler_record_attrs",
		},
		{
			name: "handler and record attributes",
			setup: func(h slog.Handler) slog.Handler {
				return h.WithAttrs([]slog.Attr{slog.String("arch", "arm64")})
			},
			attrs:      []any{"phase", "configure"},
			goldenName: "handler_combined_attrs",
		},
		{
			name: "group qualifies later attributes",
			setup: func(h slog.Handler) slog.Handler {
				return h.WithAttrs([]slog.Attr{slog.String("target", "png")}).
					WithGroup("pass").
					WithAttrs([]slog.Attr{slog.String("arch", "x86_64")})
			},
			attrs:      []any{"jobs", 4},
			goldenName: "handler_combined_group",
		},
		{
			name:       "group attribute is flattened",
			setup:      func(h slog.Handler) slog.Handler { return h.WithGroup("") },
			attrs:      []any{slog.Group("sdk", slog.String("version", "11.3"), slog.Group("path", slog.Bool("custom", true)))},
			goldenName: "handler_group_attr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, buf := newHandler(t, slog.LevelInfo)
			slog.New(tt.setup(handler)).Info("building", tt.attrs...)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	tests := []struct {
		name         string
		handlerLevel slog.Level
		recordLevel  slog.Level
		wantEnabled  bool
	}{
		{name: "debug below info", handlerLevel: slog.LevelInfo, recordLevel: slog.LevelDebug, wantEnabled: false},
		{name: "info at info", handlerLevel: slog.LevelInfo, recordLevel: slog.LevelInfo, wantEnabled: true},
		{name: "error above info", handlerLevel: slog.LevelInfo, recordLevel: slog.LevelError, wantEnabled: true},
		{name: "warn at error", handlerLevel: slog.LevelError, recordLevel: slog.LevelWarn, wantEnabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newHandler(t, tt.handlerLevel)
			assert.Equal(t, tt.wantEnabled, handler.Enabled(t.Context(), tt.recordLevel))
		})
	}
}

func TestPrettyHandler_NilWriter(t *testing.T) {
	require.NotPanics(t, func() {
		_ = logger.NewPrettyHandler(nil, nil)
	})
}

func TestPrettyHandler_Handle_ReturnsError(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	handler := logger.NewPrettyHandler(brokenWriter{}, nil)
	require.NotPanics(t, func() {
		slog.New(handler).Info("this will fail to write")
	})
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}
