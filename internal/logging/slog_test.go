package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_FileOnly_NoStdout(t *testing.T) {
	restore := captureStdout(t)

	var fileBuf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &fileBuf, Level: "info"})
	m.Logger().Info("hello file")

	stdout := restore()

	assert.Contains(t, fileBuf.String(), "hello file")
	assert.Empty(t, stdout)
}

func TestSetup_NoFile_WritesToStdout(t *testing.T) {
	restore := captureStdout(t)

	m := NewSlogManager()
	m.Setup(Options{Level: "info"})
	m.Logger().Info("hello console")

	assert.Contains(t, restore(), "hello console")
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Level: "warn"})

	m.Logger().Info("should be filtered")
	m.Logger().Warn("should appear")

	assert.NotContains(t, buf.String(), "should be filtered")
	assert.Contains(t, buf.String(), "should appear")
}

func TestSetup_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	scene := "Level_Farm"
	m.Setup(Options{File: &buf, Level: "info", Context: func() []slog.Attr {
		return []slog.Attr{slog.String("scene", scene)}
	}})

	m.Logger().Info("first")
	scene = "Base"
	m.Logger().Info("second")

	out := buf.String()
	assert.Contains(t, out, "scene=Level_Farm")
	assert.Contains(t, out, "scene=Base", "attributes are evaluated per record")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(Options{File: &buf1, Level: "info"})
	m.Logger().Info("first")

	m.Setup(Options{File: &buf2, Level: "info"})
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_UTCTimestamps(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Level: "info"})

	m.Logger().Info("stamped")

	assert.Regexp(t, `time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`, buf.String())
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Level: "info", Provider: provider})

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestFlush_NilProvider(t *testing.T) {
	assert.NoError(t, NewSlogManager().Flush(context.Background()))
}

func TestWriteLog_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		t.Run(level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(Options{File: &buf, Level: "debug"})

			m.WriteLog("killcam_fnc_hit", level+" message", level)

			assert.Contains(t, buf.String(), level+" message")
			assert.Contains(t, buf.String(), "function=killcam_fnc_hit")
		})
	}
}

func TestWriteLog_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { NewSlogManager().WriteLog("fn", "data", "info") })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"TRACE", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&buf1, nil),
		nil,
		slog.NewTextHandler(&buf2, nil),
	)
	require.Len(t, multi.handlers, 2)

	slog.New(multi).Info("fanned out")

	assert.Contains(t, buf1.String(), "fanned out")
	assert.Contains(t, buf2.String(), "fanned out")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	assert.False(t, NewMultiHandler(infoHandler).Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, NewMultiHandler(infoHandler, debugHandler).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(slog.NewTextHandler(&buf, nil))

	logger := slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "director")}).WithGroup("shot"))
	logger.Info("grouped", "dt", 0.3)

	assert.Contains(t, buf.String(), "component=director")
	assert.Contains(t, buf.String(), "shot.dt=0.3")
	assert.Same(t, multi, multi.WithGroup(""))
}

type errorHandler struct {
	slog.Handler
}

func (h *errorHandler) Handle(context.Context, slog.Record) error {
	return errors.New("handler error")
}

func (h *errorHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func TestMultiHandler_HandleErrorContinues(t *testing.T) {
	var buf bytes.Buffer
	spy := slog.NewTextHandler(&buf, nil)
	multi := NewMultiHandler(&errorHandler{}, spy)

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "should reach spy", 0))

	assert.Error(t, err)
	assert.Contains(t, buf.String(), "should reach spy")
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("session", "abc")}
	})

	slog.New(h.WithAttrs([]slog.Attr{slog.Int("n", 1)})).Info("ctx")

	assert.Contains(t, buf.String(), "session=abc")
	assert.Contains(t, buf.String(), "n=1")
	assert.Same(t, h, h.WithGroup(""))
}

// captureStdout redirects the console sink to a pipe and returns a function
// that restores it and returns what was captured.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)

	orig := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = orig
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}
