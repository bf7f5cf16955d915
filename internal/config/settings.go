package config

import (
	"time"
)

// Settings tunes the session engine.
type Settings struct {
	// DrainLimit bounds the commands an actor writes per tick.
	DrainLimit int
	// IdleSleep is how long an actor sleeps after a tick with no work.
	IdleSleep time.Duration
	// ReadBuffer is the size of one channel read.
	ReadBuffer int
	// OutputQueue is the capacity, in chunks, of a session's output queue.
	OutputQueue int
	// CommandQueue is the capacity of a session's command queue.
	CommandQueue int

	Cols       int
	Rows       int
	Scrollback int
	TermType   string

	DialTimeout time.Duration

	LogLevel string
	LogFile  string

	// PromptNoise lists prefixes never reported as a prompt.
	PromptNoise []string
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		DrainLimit:   10,
		IdleSleep:    5 * time.Millisecond,
		ReadBuffer:   32 * 1024,
		OutputQueue:  1024,
		CommandQueue: 256,
		Cols:         80,
		Rows:         24,
		Scrollback:   1000,
		TermType:     "xterm-256color",
		DialTimeout:  10 * time.Second,
		LogLevel:     "info",
		PromptNoise:  []string{"Last login"},
	}
}

// Validate rejects settings the engine cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.DrainLimit < 1:
		return invalid("settings.drain_limit", "must be at least 1", s.DrainLimit)
	case s.IdleSleep <= 0:
		return invalid("settings.idle_sleep", "must be positive", s.IdleSleep)
	case s.ReadBuffer < 512:
		return invalid("settings.read_buffer", "must be at least 512", s.ReadBuffer)
	case s.OutputQueue < 1:
		return invalid("settings.output_queue", "must be at least 1", s.OutputQueue)
	case s.CommandQueue < 1:
		return invalid("settings.command_queue", "must be at least 1", s.CommandQueue)
	case s.Cols < 1 || s.Cols > 65535:
		return invalid("settings.cols", "out of range", s.Cols)
	case s.Rows < 1 || s.Rows > 65535:
		return invalid("settings.rows", "out of range", s.Rows)
	case s.Scrollback < 0:
		return invalid("settings.scrollback", "must not be negative", s.Scrollback)
	case s.TermType == "":
		return invalid("settings.term_type", "is required", nil)
	case s.DialTimeout <= 0:
		return invalid("settings.dial_timeout", "must be positive", s.DialTimeout)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("settings.log_level", "must be debug, info, warn or error", s.LogLevel)
	}
	return nil
}
