// Package logging provides the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Format selects the line encoding.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
)

// Config configures a Logger.
type Config struct {
	Level  Level
	Output io.Writer // defaults to os.Stderr
	Prefix string
	Format Format
	// Timestamps adds a time field to every line.
	Timestamps bool
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		Prefix:     "termlink",
		Format:     FormatText,
		Timestamps: true,
	}
}

// Logger is a leveled key/value logger. Derived loggers carry extra fields.
type Logger struct {
	l *log.Logger
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := log.Options{
		Level:           cfg.Level.charm(),
		Prefix:          cfg.Prefix,
		ReportTimestamp: cfg.Timestamps,
		TimeFormat:      "2006-01-02T15:04:05.000",
	}
	switch cfg.Format {
	case FormatJSON:
		opts.Formatter = log.JSONFormatter
	case FormatLogfmt:
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return &Logger{l: log.NewWithOptions(cfg.Output, opts)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Output: io.Discard, Level: LevelError})
}

// OpenFile opens path for appending, creating parent directories.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// WithField returns a logger that adds key=value to every line.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{l: l.l.With(key, value)}
}

// WithFields returns a logger that adds all of fields to every line.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{l: l.l.With(kv...)}
}

// WithComponent sets the component field.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// WithSession sets the session field.
func (l *Logger) WithSession(id string) *Logger {
	return l.WithField("session", id)
}

// SetLevel changes the minimum level of this logger.
func (l *Logger) SetLevel(level Level) {
	l.l.SetLevel(level.charm())
}

// SetOutput redirects this logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.l.SetOutput(w)
}

// Debug logs at debug level. args are alternating keys and values.
func (l *Logger) Debug(msg string, args ...any) {
	l.l.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.l.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.l.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.l.Error(msg, args...)
}

// Timed logs how long fn took at debug level and returns its error.
func (l *Logger) Timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		l.Debug(op+" failed", "elapsed", time.Since(start), "error", err)
		return err
	}
	l.Debug(op, "elapsed", time.Since(start))
	return nil
}
