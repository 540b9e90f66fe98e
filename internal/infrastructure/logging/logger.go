package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/sep2-core/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "sep2core"

// Logger is a slog.Logger carrying the service and version attributes.
// It satisfies the narrow Logger interfaces declared by the notification,
// taskqueue and mqtt packages.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the stream named by cfg.Output.
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWriter(out, cfg, version)
}

// NewWriter creates a Logger writing to w. cfg.Output is ignored.
func NewWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	}))}
}

// parseLevel maps debug, info, warn (or warning) and error to a level.
// Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a Logger tagged component=name, one per subsystem:
//
//	checkLog := logger.Component("notification")
//	checkLog.Info("notification check complete") // component=notification
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the JSON, info level logger used before configuration loads.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
