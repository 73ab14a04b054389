// Package logging provides component-scoped structured logging on log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lmittmann/tint"
)

// Format selects the handler used for log output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures the process-wide handler.
type Options struct {
	Level   slog.Level
	Format  Format
	Output  io.Writer
	NoColor bool
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// NewHandler builds a tint handler for text output or a JSON handler.
func NewHandler(opts Options) slog.Handler {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Format == FormatJSON {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})
	}
	return tint.NewHandler(out, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	})
}

// Setup installs the handler as the slog default and returns it.
func Setup(opts Options) *slog.Logger {
	l := slog.New(NewHandler(opts))
	slog.SetDefault(l)
	return l
}

// Logger emits events for one component. The zero value is not usable;
// create loggers with New or FromSlog.
type Logger struct {
	component string
	base      *slog.Logger
	attrs     []any
}

// New creates a logger for component that writes through the slog default
// at the time each event is logged.
func New(component string) *Logger {
	return &Logger{component: component}
}

// FromSlog creates a logger for component bound to base.
func FromSlog(base *slog.Logger, component string) *Logger {
	return &Logger{component: component, base: base}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return FromSlog(slog.New(slog.NewTextHandler(io.Discard, nil)), "discard")
}

// With returns a copy carrying an extra attribute on every event.
func (l *Logger) With(key string, value any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+2)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, key, value)
	return &Logger{component: l.component, base: l.base, attrs: attrs}
}

// Named returns a copy logging under a different component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{component: component, base: l.base, attrs: l.attrs}
}

// WithConversation tags events with a conversation id.
func (l *Logger) WithConversation(id string) *Logger {
	return l.With("conversation", id)
}

func (l *Logger) slog() *slog.Logger {
	if l.base != nil {
		return l.base
	}
	return slog.Default()
}

func (l *Logger) log(level slog.Level, event string, extra map[string]any, err error) {
	args := make([]any, 0, 2+len(l.attrs)+2*len(extra)+2)
	args = append(args, "component", l.component)
	args = append(args, l.attrs...)
	for _, k := range sortedKeys(extra) {
		args = append(args, k, extra[k])
	}
	if err != nil {
		args = append(args, tint.Err(err))
	}
	l.slog().Log(context.Background(), level, event, args...)
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	l.log(slog.LevelDebug, event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	l.log(slog.LevelInfo, event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	l.log(slog.LevelWarn, event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	l.log(slog.LevelError, event, extra, err)
}

// TimedEvent logs an info event with the milliseconds elapsed since start.
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	merged := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		merged[k] = v
	}
	merged["duration_ms"] = time.Since(start).Milliseconds()
	l.log(slog.LevelInfo, event, merged, nil)
}

// SanitizeArgs shortens long text values and redacts secret-looking keys
// before tool arguments reach a log line.
func SanitizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	safe := make(map[string]any, len(args))
	for k, v := range args {
		switch strings.ToLower(k) {
		case "password", "secret", "token", "key", "api_key", "apikey":
			safe[k] = "[REDACTED]"
		default:
			if s, ok := v.(string); ok {
				safe[k] = Truncate(s, 200)
			} else {
				safe[k] = v
			}
		}
	}
	return safe
}

// Truncate shortens s to at most n bytes, marking the cut. The cut never
// splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:runeStart(s, n)]
	}
	return s[:runeStart(s, n-3)] + "..."
}

// runeStart moves i back to the first byte of the rune containing it.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
