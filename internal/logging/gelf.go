package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
)

// syslog severities used by GELF
const (
	gelfError   = 3
	gelfWarning = 4
	gelfInfo    = 6
	gelfDebug   = 7
)

// GELFHandler ships records to Graylog. Attributes become GELF additional
// fields; groups are joined with dots.
type GELFHandler struct {
	w        *gelf.Writer
	level    slog.Leveler
	facility string
	host     string
	attrs    []slog.Attr
	groups   []string
}

// NewGELFHandler creates a handler writing through w.
func NewGELFHandler(w *gelf.Writer, level slog.Leveler, facility string) *GELFHandler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GELFHandler{w: w, level: level, facility: facility, host: host}
}

// Enabled implements slog.Handler.
func (h *GELFHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *GELFHandler) Handle(_ context.Context, r slog.Record) error {
	m := h.message(r)
	if err := h.w.WriteMessage(m); err != nil {
		return fmt.Errorf("gelf write: %w", err)
	}
	return nil
}

func (h *GELFHandler) message(r slog.Record) *gelf.Message {
	extra := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addExtra(extra, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		addExtra(extra, prefix, a)
		return true
	})

	return &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    gelfLevel(r.Level),
		Facility: h.facility,
		Extra:    extra,
	}
}

func addExtra(extra map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			addExtra(extra, key, ga)
		}
		return
	}
	extra["_"+key] = a.Value.String()
}

func gelfLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return gelfError
	case l >= slog.LevelWarn:
		return gelfWarning
	case l >= slog.LevelInfo:
		return gelfInfo
	}
	return gelfDebug
}

// WithAttrs implements slog.Handler.
func (h *GELFHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	prefix := strings.Join(h.groups, ".")
	out.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Attr{Key: prefix + "." + a.Key, Value: a.Value}
		}
		out.attrs = append(out.attrs, a)
	}
	return &out
}

// WithGroup implements slog.Handler.
func (h *GELFHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.groups = append(append([]string(nil), h.groups...), name)
	return &out
}
