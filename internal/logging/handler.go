package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FanoutHandler is a slog.Handler that forwards every record to a base
// handler and mirrors a rendered copy into a Broadcaster for the live log
// stream.
type FanoutHandler struct {
	base  slog.Handler
	b     *Broadcaster
	attrs []slog.Attr
}

// NewFanoutHandler wraps base so records also reach b.
func NewFanoutHandler(base slog.Handler, b *Broadcaster) *FanoutHandler {
	return &FanoutHandler{base: base, b: b}
}

func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", r.Time.Format("15:04:05"), r.Level, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	})
	h.b.Publish(sb.String())

	return h.base.Handle(ctx, r)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &FanoutHandler{base: h.base.WithAttrs(attrs), b: h.b, attrs: merged}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	return &FanoutHandler{base: h.base.WithGroup(name), b: h.b, attrs: h.attrs}
}
