package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// BufferHandler is an slog.Handler that copies log records into an
// EventBuffer in addition to a wrapped base handler (typically
// stderr), so recent log lines stay queryable over the API.
type BufferHandler struct {
	base   slog.Handler
	buffer *EventBuffer
	attrs  []slog.Attr
	groups []string
}

// NewBufferHandler wraps a base slog.Handler with event buffering.
func NewBufferHandler(base slog.Handler, buffer *EventBuffer) *BufferHandler {
	return &BufferHandler{base: base, buffer: buffer}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	h.buffer.Add(EventRecord{
		Time:  t,
		Level: r.Level.String(),
		Msg:   r.Message,
		Attrs: formatAttrs(r, h.attrs, h.groups),
	})
	return err
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferHandler{
		base:   h.base.WithAttrs(attrs),
		buffer: h.buffer,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	return &BufferHandler{
		base:   h.base.WithGroup(name),
		buffer: h.buffer,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

// formatAttrs produces a compact text representation of a record's
// attributes.
func formatAttrs(r slog.Record, preAttrs []slog.Attr, groups []string) string {
	var b strings.Builder
	for _, a := range preAttrs {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", a.Key, a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if len(groups) > 0 {
			key = strings.Join(groups, ".") + "." + key
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", key, a.Value.String())
		return true
	})
	return b.String()
}

// Setup installs the default logger: a text handler on stderr teed
// into the returned event buffer.
func Setup(debug bool, bufferSize int) *EventBuffer {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	buffer := NewEventBuffer(bufferSize)
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(NewBufferHandler(base, buffer)))
	return buffer
}
