package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// swapped in tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// instrumentation scope for the otel bridge
const scopeName = "killcam-extension"

// Options selects the sinks of a SlogManager.
type Options struct {
	// File receives text logs. When nil, logs go to stdout instead.
	File  io.Writer
	Level string
	// Provider enables the OpenTelemetry bridge.
	Provider *sdklog.LoggerProvider
	// Graylog enables GELF shipping.
	Graylog *gelf.Writer
	// Context adds attributes such as the current scene to every record.
	Context ContextProvider
}

// SlogManager manages slog-based logging with optional OTel and Graylog sinks.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup builds the logger. Calling it again replaces the previous sinks.
func (m *SlogManager) Setup(opts Options) {
	lvl := parseLevel(opts.Level)
	m.logProvider = opts.Provider

	textOpts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: utcTime}

	var handlers []slog.Handler
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, textOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, textOpts))
	}
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler(scopeName, otelslog.WithLoggerProvider(opts.Provider)))
	}
	if opts.Graylog != nil {
		handlers = append(handlers, NewGELFHandler(opts.Graylog, lvl, scopeName))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized",
		"level", lvl.String(),
		"otel", opts.Provider != nil,
		"graylog", opts.Graylog != nil)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog logs data at the named level, tagged with the calling function.
// Used by the host's log command.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}
