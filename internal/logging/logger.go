package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LevelFatal marks records emitted while the process is going down. It sits
// above slog.LevelError so it is never filtered out by level configuration.
const LevelFatal = slog.LevelError + 4

// Logger wraps slog.Logger with a fatal level and runtime level control.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, pretty, text, json
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "auto",
		Output:    os.Stderr,
		AddSource: false,
	}
}

// New creates a new logger.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceLevelName,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(cfg.Output, opts)
	case "text":
		handler = slog.NewTextHandler(cfg.Output, opts)
	case "pretty":
		handler = NewPrettyHandler(cfg.Output, level)
	default: // auto
		if isTerminal(cfg.Output) {
			handler = NewPrettyHandler(cfg.Output, level)
		} else {
			handler = slog.NewJSONHandler(cfg.Output, opts)
		}
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
	}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	level := new(slog.LevelVar)
	level.Set(slog.LevelError)
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})),
		level:  level,
	}
}

// ParseLevel maps a level name to its slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

// replaceLevelName renders LevelFatal as FATAL instead of slog's ERROR+4.
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelFatal {
			a.Value = slog.StringValue("FATAL")
		}
	}
	return a
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Fatal logs at LevelFatal. It does not exit; process teardown belongs to
// the diagnostics layer.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Log(context.Background(), LevelFatal, msg, args...)
}

// SetLevel changes the minimum level of all handlers derived from this
// logger, including loggers previously returned by With.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// WithUnit returns a logger with supervised-unit context.
func (l *Logger) WithUnit(unitID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("unit_id", unitID),
		level:  l.level,
	}
}

// WithComponent returns a logger with component context.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
		level:  l.level,
	}
}

// With returns a logger with custom fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
	}
}
