// Package view draws extracted frames onto a tcell screen.
package view

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/termlink/internal/extract"
	"github.com/dshills/termlink/internal/vt"
)

// Renderer paints FrameResults. The last screen row is reserved for a status
// line once one has been set.
type Renderer struct {
	mu     sync.Mutex
	screen tcell.Screen
	status string
	bells  int
}

// New wraps an initialized screen.
func New(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// NewTerminal opens the controlling terminal.
func NewTerminal() (*Renderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnablePaste()
	return New(screen), nil
}

// Screen returns the underlying tcell screen.
func (r *Renderer) Screen() tcell.Screen {
	return r.screen
}

// Close restores the terminal.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen.Fini()
}

// SetStatus sets the status line text. An empty string releases the row.
func (r *Renderer) SetStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = text
}

// ContentSize returns the area available to frames.
func (r *Renderer) ContentSize() (cols, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contentSize()
}

func (r *Renderer) contentSize() (int, int) {
	w, h := r.screen.Size()
	if r.status != "" && h > 1 {
		h--
	}
	return w, h
}

// Draw paints a frame and flushes it to the terminal.
func (r *Renderer) Draw(f extract.FrameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.screen.Clear()
	w, h := r.contentSize()
	for y, line := range f.Lines {
		if y >= h {
			break
		}
		x := 0
		for _, seg := range line.Segments {
			x = r.drawSegment(x, y, w, seg)
		}
	}

	if r.status != "" {
		_, sh := r.screen.Size()
		r.drawStatus(sh-1, w)
	}

	if f.CursorVisible && f.Cursor.Row < h && f.Cursor.Col < w {
		r.screen.ShowCursor(f.Cursor.Col, f.Cursor.Row)
	} else {
		r.screen.HideCursor()
	}
	r.screen.Show()
}

// Bell rings the terminal bell when count has grown since the last call.
func (r *Renderer) Bell(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count > r.bells {
		_ = r.screen.Beep() // best-effort
	}
	r.bells = count
}

func (r *Renderer) drawSegment(x, y, maxX int, seg extract.Segment) int {
	style := convertStyle(seg.Style)
	hidden := seg.Style.Attrs.Has(vt.AttrHidden)

	g := uniseg.NewGraphemes(seg.Text)
	for g.Next() && x < maxX {
		runes := g.Runes()
		width := g.Width()
		if width < 1 {
			width = 1
		}
		if hidden {
			runes = []rune{' '}
		}
		r.screen.SetContent(x, y, runes[0], runes[1:], style)
		x += width
	}
	return x
}

func (r *Renderer) drawStatus(y, w int) {
	style := tcell.StyleDefault.Reverse(true)
	x := 0
	g := uniseg.NewGraphemes(r.status)
	for g.Next() && x < w {
		runes := g.Runes()
		r.screen.SetContent(x, y, runes[0], runes[1:], style)
		x += max(g.Width(), 1)
	}
	for ; x < w; x++ {
		r.screen.SetContent(x, y, ' ', nil, style)
	}
}

// convertStyle converts a cell style to tcell.Style.
func convertStyle(s vt.Style) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(convertColor(s.Fg)).
		Background(convertColor(s.Bg))

	if s.Attrs.Has(vt.AttrBold) {
		style = style.Bold(true)
	}
	if s.Attrs.Has(vt.AttrDim) {
		style = style.Dim(true)
	}
	if s.Attrs.Has(vt.AttrItalic) {
		style = style.Italic(true)
	}
	if s.Attrs.Has(vt.AttrUnderline) {
		style = style.Underline(true)
	}
	if s.Attrs.Has(vt.AttrBlink) {
		style = style.Blink(true)
	}
	if s.Attrs.Has(vt.AttrInverse) {
		style = style.Reverse(true)
	}
	if s.Attrs.Has(vt.AttrStrike) {
		style = style.StrikeThrough(true)
	}
	return style
}

// convertColor keeps palette colors as palette entries so the user's
// terminal theme applies; only 24-bit colors are sent as RGB.
func convertColor(c vt.Color) tcell.Color {
	switch {
	case c.Default:
		return tcell.ColorDefault
	case c.Index >= 0:
		return tcell.PaletteColor(c.Index)
	default:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	}
}
