// Package emulator couples the VT state machine with the content extractor.
//
// An Emulator is the consumer side of a session: bytes read from the
// registry are fed in, and each Feed returns the next renderable frame.
// Methods are safe for concurrent use; a feeding goroutine and a rendering
// goroutine may share one Emulator.
package emulator

import (
	"sync"

	"github.com/dshills/termlink/internal/extract"
	"github.com/dshills/termlink/internal/vt"
)

// Emulator owns one screen, its parser and an extractor.
type Emulator struct {
	mu         sync.Mutex
	screen     *vt.Screen
	parser     *vt.Parser
	extractor  *extract.Extractor
	scrollback int
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithScrollback sets the number of scrollback rows kept in memory.
func WithScrollback(rows int) Option {
	return func(e *Emulator) {
		e.scrollback = rows
	}
}

// WithNoise replaces the prompt noise prefixes.
func WithNoise(prefixes ...string) Option {
	return func(e *Emulator) {
		e.extractor.Noise = prefixes
	}
}

// New creates an emulator of cols x rows.
func New(cols, rows int, opts ...Option) *Emulator {
	e := &Emulator{
		extractor:  extract.New(),
		scrollback: vt.DefaultScrollback,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.screen = vt.NewScreen(cols, rows, e.scrollback)
	e.parser = vt.NewParser(e.screen)
	return e
}

// Feed parses data and returns the resulting frame.
func (e *Emulator) Feed(data []byte) extract.FrameResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parser.Parse(data)
	return e.extractor.Extract(e.screen)
}

// Write parses p without extracting a frame. It never fails.
func (e *Emulator) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parser.Parse(p)
	return len(p), nil
}

// Frame extracts the current frame.
func (e *Emulator) Frame() extract.FrameResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extractor.Extract(e.screen)
}

// Scrollback returns the rows scrolled off the primary screen, oldest first.
func (e *Emulator) Scrollback() []extract.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return extract.History(e.screen.History())
}

// Resize changes the screen size.
func (e *Emulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.screen.Resize(cols, rows)
}

// Reset discards all state, counters and scrollback, keeping the size.
func (e *Emulator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	cols, rows := e.screen.Size()
	e.screen = vt.NewScreen(cols, rows, e.scrollback)
	e.parser = vt.NewParser(e.screen)
}

// Size returns the screen dimensions.
func (e *Emulator) Size() (cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.Size()
}

// Cursor returns the cursor position.
func (e *Emulator) Cursor() (row, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.Cursor()
}

// Title returns the window title.
func (e *Emulator) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.Title()
}

// IconName returns the icon name.
func (e *Emulator) IconName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.IconName()
}

// AltScreen reports whether the alternate buffer is active.
func (e *Emulator) AltScreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.AltScreen()
}

// CursorHidden reports whether the cursor is hidden.
func (e *Emulator) CursorHidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.screen.CursorVisible()
}

// Modes returns the mode flags used for key encoding.
func (e *Emulator) Modes() vt.Modes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.Modes()
}

// Errors returns the parser error count.
func (e *Emulator) Errors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.Errors()
}

// Bells returns the bell count.
func (e *Emulator) Bells() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen.Bells()
}
