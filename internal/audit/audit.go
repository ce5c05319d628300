// Package audit writes a best-effort append-only event log alongside
// structured logging. It is wired in as an slog.Handler so handlers log
// through an injected *slog.Logger and never call the sink directly.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Writer appends timestamped free-text lines to a log file. Write failures
// are swallowed: the audit trail is fire-and-forget and must never take a
// handler down with it.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) the audit file for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &Writer{file: f}, nil
}

// Append writes a single timestamped line.
func (w *Writer) Append(line string) {
	ts := time.Now().UTC().Format(time.RFC3339)
	w.mu.Lock()
	fmt.Fprintf(w.file, "%s: %s\n", ts, line)
	w.mu.Unlock()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Handler is an slog.Handler that appends each record to a Writer and
// delegates to an inner handler.
type Handler struct {
	inner slog.Handler
	w     *Writer
	attrs []slog.Attr
}

// NewHandler creates a handler that writes to both w and inner.
func NewHandler(inner slog.Handler, w *Writer) *Handler {
	return &Handler{inner: inner, w: w}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	// Capture everything; the inner handler applies its own level filter.
	return true
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	h.w.Append(b.String())

	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	v := a.Value.Resolve()
	if err, ok := v.Any().(error); ok {
		fmt.Fprintf(b, " %s=%s", a.Key, err.Error())
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, v.Any())
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		inner: h.inner.WithAttrs(attrs),
		w:     h.w,
		attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner: h.inner.WithGroup(name),
		w:     h.w,
		attrs: h.attrs,
	}
}
