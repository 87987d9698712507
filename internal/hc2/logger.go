package hc2

import (
	"log/slog"
	"os"
)

// Logger defines the logging interface shared by all components.
// *slog.Logger and the service's logging.Logger satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// componentLogger prefixes every entry with client and component fields.
type componentLogger struct {
	base  Logger
	attrs []any
}

func newComponentLogger(base Logger, clientID, component string) componentLogger {
	return componentLogger{base: base, attrs: []any{"client_id", clientID, "component", component}}
}

func (l componentLogger) with(args []any) []any {
	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)
	return append(out, args...)
}

func (l componentLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.with(args)...) }
func (l componentLogger) Info(msg string, args ...any)  { l.base.Info(msg, l.with(args)...) }
func (l componentLogger) Warn(msg string, args ...any)  { l.base.Warn(msg, l.with(args)...) }
func (l componentLogger) Error(msg string, args ...any) { l.base.Error(msg, l.with(args)...) }

// baseLogger picks the configured logger, a debug logger, or a no-op.
func baseLogger(opts Options) Logger {
	switch {
	case opts.Logger != nil:
		return opts.Logger
	case opts.Debug:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return noopLogger{}
	}
}
