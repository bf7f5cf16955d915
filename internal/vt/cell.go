package vt

import (
	"github.com/rivo/uniseg"
)

// Attributes is a bit set of SGR text attributes.
type Attributes uint16

const (
	AttrNone      Attributes = 0
	AttrBold      Attributes = 1 << 0
	AttrDim       Attributes = 1 << 1
	AttrItalic    Attributes = 1 << 2
	AttrUnderline Attributes = 1 << 3
	AttrBlink     Attributes = 1 << 4
	AttrInverse   Attributes = 1 << 5
	AttrHidden    Attributes = 1 << 6
	AttrStrike    Attributes = 1 << 7
)

// Has returns true if every bit of attr is set.
func (a Attributes) Has(attr Attributes) bool {
	return a&attr == attr
}

// Style is the rendition shared by a run of cells.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attributes
}

// DefaultStyle has default colors and no attributes.
var DefaultStyle = Style{Fg: DefaultColor, Bg: DefaultColor}

// IsDefault reports whether s equals DefaultStyle.
func (s Style) IsDefault() bool {
	return s == DefaultStyle
}

// Cell is one screen position.
//
// Content holds a full grapheme cluster. A wide grapheme occupies two cells:
// the leading cell has Width 2 and the trailing cell is a continuation with
// empty Content and Width 0.
type Cell struct {
	Content string
	Width   int
	Style   Style
}

// BlankCell returns the default cell: a space with no attributes.
func BlankCell() Cell {
	return Cell{Content: " ", Width: 1, Style: DefaultStyle}
}

// IsBlank reports whether the cell is a default-styled space.
func (c Cell) IsBlank() bool {
	return c.Width == 1 && c.Content == " " && c.Style.IsDefault()
}

// IsContinuation reports whether the cell is the right half of a wide grapheme.
func (c Cell) IsContinuation() bool {
	return c.Width == 0
}

// Row is one line of cells.
type Row struct {
	Cells   []Cell
	Wrapped bool // the row soft-wraps into the next one
}

func newRow(width int) *Row {
	r := &Row{Cells: make([]Cell, width)}
	r.clear()
	return r
}

func (r *Row) clear() {
	for i := range r.Cells {
		r.Cells[i] = BlankCell()
	}
	r.Wrapped = false
}

// clearRange blanks cells in [start, end).
func (r *Row) clearRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(r.Cells) {
		end = len(r.Cells)
	}
	for i := start; i < end; i++ {
		r.Cells[i] = BlankCell()
	}
}

func (r *Row) clone() *Row {
	c := &Row{Cells: make([]Cell, len(r.Cells)), Wrapped: r.Wrapped}
	copy(c.Cells, r.Cells)
	return c
}

// resized returns a copy of r with exactly width cells.
func (r *Row) resized(width int) *Row {
	n := newRow(width)
	copy(n.Cells, r.Cells)
	if width > 0 && n.Cells[width-1].Width == 2 {
		n.Cells[width-1] = BlankCell()
	}
	n.Wrapped = r.Wrapped && len(r.Cells) <= width
	return n
}

// Text returns the row's characters with continuation cells skipped.
func (r *Row) Text() string {
	var b []byte
	for _, c := range r.Cells {
		if c.IsContinuation() {
			continue
		}
		b = append(b, c.Content...)
	}
	return string(b)
}

// runeWidth is the number of columns r occupies on its own.
func runeWidth(r rune) int {
	return uniseg.StringWidth(string(r))
}
