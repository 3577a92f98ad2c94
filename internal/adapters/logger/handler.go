// Package logger implements a logging adapter using log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/unibuild/internal/ui/output"
	"go.trai.ch/unibuild/internal/ui/style"
)

// PrettyHandler is a slog.Handler that writes one colored line per record.
// Attributes render as key=value pairs, qualified by their enclosing groups.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	attrs  []string
	groups []string
}

// NewPrettyHandler creates a new PrettyHandler writing to the provided writer.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level)

	return &PrettyHandler{
		out:   output.New(w),
		level: levelVar,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and outputs the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var prefix string
	var color termenv.Color

	switch {
	case r.Level >= slog.LevelError:
		prefix = style.Cross + " "
		color = termenv.RGBColor(string(style.Red))
	case r.Level >= slog.LevelWarn:
		prefix = style.Warning + " "
		color = termenv.RGBColor(string(style.Yellow))
	default:
		color = termenv.RGBColor(string(style.Slate))
	}

	parts := make([]string, 0, 1+len(h.attrs)+r.NumAttrs())
	if r.Message != "" {
		parts = append(parts, prefix+r.Message)
	} else if prefix != "" {
		parts = append(parts, strings.TrimSpace(prefix))
	}
	parts = append(parts, h.attrs...)

	qualifier := strings.Join(h.groups, ".")
	r.Attrs(func(attr slog.Attr) bool {
		parts = appendAttr(parts, qualifier, attr)
		return true
	})

	styled := h.out.String(strings.Join(parts, " ")).Foreground(color)
	_, err := h.out.WriteString(styled.String() + "\n")

	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	qualifier := strings.Join(h.groups, ".")
	newAttrs := make([]string, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, attr := range attrs {
		newAttrs = appendAttr(newAttrs, qualifier, attr)
	}

	return &PrettyHandler{
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

// WithGroup returns a new Handler that qualifies later attributes with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	groups := make([]string, len(h.groups), len(h.groups)+1)
	copy(groups, h.groups)

	return &PrettyHandler{
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(groups, name),
	}
}

// appendAttr flattens attr into key=value pairs, expanding groups into dotted keys.
func appendAttr(parts []string, qualifier string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return parts
	}

	key := attr.Key
	if qualifier != "" && key != "" {
		key = qualifier + "." + key
	} else if key == "" {
		key = qualifier
	}

	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			parts = appendAttr(parts, key, member)
		}
		return parts
	}

	return append(parts, key+"="+attr.Value.String())
}
