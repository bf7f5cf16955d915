// Package extract turns a vt.Screen into render-ready output: rows of
// attribute-homogeneous segments and a best-effort prompt guess.
package extract

import (
	"strings"

	"github.com/dshills/termlink/internal/vt"
)

// Segment is a maximal run of cells sharing one style.
type Segment struct {
	Text  string
	Style vt.Style
}

// Fg returns the segment's foreground color.
func (s Segment) Fg() vt.Color { return s.Style.Fg }

// Bg returns the segment's background color.
func (s Segment) Bg() vt.Color { return s.Style.Bg }

// Bold reports whether the segment is bold.
func (s Segment) Bold() bool { return s.Style.Attrs.Has(vt.AttrBold) }

// Italic reports whether the segment is italic.
func (s Segment) Italic() bool { return s.Style.Attrs.Has(vt.AttrItalic) }

// Underline reports whether the segment is underlined.
func (s Segment) Underline() bool { return s.Style.Attrs.Has(vt.AttrUnderline) }

// Inverse reports whether the segment has reverse video.
func (s Segment) Inverse() bool { return s.Style.Attrs.Has(vt.AttrInverse) }

// Hex returns the foreground and background as "#rrggbb", with "" for the
// terminal default.
func (s Segment) Hex() (fg, bg string) {
	return s.Style.Fg.Hex(), s.Style.Bg.Hex()
}

// Line is one screen row.
type Line struct {
	Segments []Segment
	Wrapped  bool
}

// Text concatenates the segment text.
func (l Line) Text() string {
	if len(l.Segments) == 1 {
		return l.Segments[0].Text
	}
	var b strings.Builder
	for _, s := range l.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Plain reports whether the line is a single default-styled segment.
func (l Line) Plain() bool {
	return len(l.Segments) == 1 && l.Segments[0].Style.IsDefault()
}

// Position is a zero-based screen coordinate.
type Position struct {
	Row int
	Col int
}

// FrameResult is one renderable screen.
type FrameResult struct {
	// Lines run from the top row down to the lowest row holding content or
	// the cursor, whichever is lower. Rows below it are blank and omitted.
	Lines []Line

	// Prompt is the detected prompt text, or "" when none was found.
	Prompt string

	Cursor        Position
	CursorVisible bool
	Cols          int
	Rows          int
}

// HasPrompt reports whether a prompt was detected.
func (f FrameResult) HasPrompt() bool {
	return f.Prompt != ""
}

// Text returns the frame's lines joined by newlines with trailing blanks trimmed.
func (f FrameResult) Text() string {
	lines := make([]string, len(f.Lines))
	for i, l := range f.Lines {
		lines[i] = strings.TrimRight(l.Text(), " ")
	}
	return strings.Join(lines, "\n")
}

// DefaultNoise lists prompt-candidate prefixes that are banner text, not prompts.
var DefaultNoise = []string{"Last login"}

// Extractor converts screens to frames.
type Extractor struct {
	// Noise holds prefixes that disqualify a prompt candidate.
	Noise []string
}

// New creates an extractor with the default noise list.
func New() *Extractor {
	return &Extractor{Noise: DefaultNoise}
}

// Extract builds a frame from s with the default noise list.
func Extract(s *vt.Screen) FrameResult {
	return New().Extract(s)
}

// Extract builds a frame from s.
func (e *Extractor) Extract(s *vt.Screen) FrameResult {
	cols, rows := s.Size()
	cr, cc := s.Cursor()

	last := cr
	for y := rows - 1; y > last; y-- {
		if !blankRow(s.Row(y)) {
			last = y
			break
		}
	}

	promptCol := cc
	if s.PendingWrap() {
		promptCol = cols
	}

	lines := make([]Line, 0, last+1)
	for y := 0; y <= last; y++ {
		lines = append(lines, RowLine(s.Row(y)))
	}

	return FrameResult{
		Lines:         lines,
		Prompt:        e.detectPrompt(s.Row(cr), promptCol),
		Cursor:        Position{Row: cr, Col: cc},
		CursorVisible: s.CursorVisible(),
		Cols:          cols,
		Rows:          rows,
	}
}

func blankRow(r *vt.Row) bool {
	for _, c := range r.Cells {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// RowLine coalesces a row's cells into segments.
func RowLine(r *vt.Row) Line {
	line := Line{Wrapped: r.Wrapped}
	var (
		b     strings.Builder
		style vt.Style
		open  bool
	)
	flush := func() {
		if open && b.Len() > 0 {
			line.Segments = append(line.Segments, Segment{Text: b.String(), Style: style})
		}
		b.Reset()
	}
	for _, c := range r.Cells {
		if c.IsContinuation() {
			continue
		}
		if !open || c.Style != style {
			flush()
			style = c.Style
			open = true
		}
		b.WriteString(c.Content)
	}
	flush()
	return line
}

// History extracts every scrollback row, oldest first.
func History(h *vt.History) []Line {
	out := make([]Line, 0, h.Len())
	for i := 0; i < h.Len(); i++ {
		out = append(out, RowLine(h.Row(i)))
	}
	return out
}
