// Package logx provides a structured logging implementation based on slog.
//
// Overview:
//   - Responsibility: Implement core/log.Logger on top of log/slog
//   - Key Types: Logger implementation, Options for configuration
//   - Concurrency Model: All loggers are safe for concurrent use
//   - Error Semantics: No errors returned; logging failures are silently handled
//   - Performance Notes: Delegates formatting to slog handlers
//
// Usage:
//
//	logger := logx.New(logx.WithFormat(logx.FormatJSON), logx.WithLevel(slog.LevelDebug))
//	logger.Info("instance rebuilt", log.Str("path", "greeter"))
package logx

import (
	"io"
	"log/slog"
	"os"

	"github.com/molt-dev/molt/core/log"
)

// Format specifies the output format for logs.
type Format string

const (
	// FormatText outputs logs as key=value pairs.
	FormatText Format = "text"
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = "json"
)

// Options configures the logger behavior.
type Options struct {
	Format Format     // Output format: text or json
	Level  slog.Level // Minimum log level
	Writer io.Writer  // Output writer (default: os.Stderr)
}

// Option configures logger behavior.
type Option func(*Options)

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) {
		o.Level = level
	}
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.Writer = w
	}
}

// Logger implements the core/log.Logger interface using slog.
type Logger struct {
	sl *slog.Logger
}

// New creates a new Logger with the given options.
func New(opts ...Option) log.Logger {
	options := Options{
		Format: FormatText,
		Level:  slog.LevelInfo,
		Writer: os.Stderr,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Writer == nil {
		options.Writer = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: options.Level}

	var handler slog.Handler
	if options.Format == FormatJSON {
		handler = slog.NewJSONHandler(options.Writer, hopts)
	} else {
		handler = slog.NewTextHandler(options.Writer, hopts)
	}

	return &Logger{sl: slog.New(handler)}
}

// With returns a new Logger with the given key-value pairs attached.
func (l *Logger) With(kv ...any) log.Logger {
	return &Logger{sl: l.sl.With(flatten(kv)...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kv ...any) {
	l.sl.Debug(msg, flatten(kv)...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, kv ...any) {
	l.sl.Info(msg, flatten(kv)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, kv ...any) {
	l.sl.Warn(msg, flatten(kv)...)
}

// Error logs an error message with the error attached as a field.
func (l *Logger) Error(err error, msg string, kv ...any) {
	args := flatten(kv)
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.sl.Error(msg, args...)
}

// flatten expands the []any pairs produced by the core/log helpers into
// the alternating key/value form slog expects, passing every other shape through.
func flatten(kv []any) []any {
	out := make([]any, 0, len(kv)*2)
	for _, item := range kv {
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			out = append(out, pair...)
			continue
		}
		out = append(out, item)
	}
	return out
}
