package vt

import "strings"

// Default screen dimensions.
const (
	DefaultCols = 80
	DefaultRows = 24
)

// CursorStyle represents the cursor appearance.
type CursorStyle int

const (
	CursorBlock CursorStyle = iota
	CursorUnderline
	CursorBar
)

// Modes is a snapshot of the mode flags that affect rendering and input encoding.
type Modes struct {
	AppCursor      bool // DECCKM
	AppKeypad      bool // DECKPAM / DECNKM
	BracketedPaste bool
	AltScreen      bool
	CursorHidden   bool
	AutoWrap       bool // DECAWM
	Origin         bool // DECOM
}

type savedCursor struct {
	x, y   int
	pen    Style
	origin bool
}

// Screen is the terminal screen buffer: two grids of cells (primary and
// alternate), the cursor, mode flags, window title and counters.
//
// A Screen is not safe for concurrent use. It is mutated only by its Parser
// and must be owned by a single goroutine, or guarded by the caller.
type Screen struct {
	width  int
	height int

	rows  []*Row // active buffer
	other []*Row // inactive buffer
	alt   bool

	history *History

	cursorX int // may equal width: the next printable wraps first
	cursorY int

	cursorVisible bool
	cursorStyle   CursorStyle

	scrollTop    int
	scrollBottom int

	pen Style

	savedPrimary savedCursor
	savedAlt     savedCursor

	originMode     bool
	autoWrap       bool
	appCursor      bool
	appKeypad      bool
	bracketedPaste bool

	title    string
	iconName string

	bells  int
	errors int
}

// NewScreen creates a screen of cols x rows with a scrollback ring of the
// given size. Non-positive dimensions fall back to 80x24.
func NewScreen(cols, rows, scrollback int) *Screen {
	if cols < 1 {
		cols = DefaultCols
	}
	if rows < 1 {
		rows = DefaultRows
	}
	s := &Screen{
		width:   cols,
		height:  rows,
		rows:    makeRows(cols, rows),
		other:   makeRows(cols, rows),
		history: NewHistory(scrollback),
	}
	s.resetState()
	return s
}

func makeRows(cols, rows int) []*Row {
	out := make([]*Row, rows)
	for i := range out {
		out[i] = newRow(cols)
	}
	return out
}

func (s *Screen) resetState() {
	s.cursorX = 0
	s.cursorY = 0
	s.cursorVisible = true
	s.cursorStyle = CursorBlock
	s.scrollTop = 0
	s.scrollBottom = s.height - 1
	s.pen = DefaultStyle
	s.savedPrimary = savedCursor{pen: DefaultStyle}
	s.savedAlt = savedCursor{pen: DefaultStyle}
	s.originMode = false
	s.autoWrap = true
	s.appCursor = false
	s.appKeypad = false
	s.bracketedPaste = false
}

// Size returns the screen dimensions.
func (s *Screen) Size() (cols, rows int) {
	return s.width, s.height
}

// Cursor returns the cursor position, zero-based.
func (s *Screen) Cursor() (row, col int) {
	col = s.cursorX
	if col >= s.width {
		col = s.width - 1
	}
	return s.cursorY, col
}

// PendingWrap reports whether the cursor sits past the right margin, so
// Cursor reports the last column but the next printable wraps first.
func (s *Screen) PendingWrap() bool { return s.cursorX >= s.width }

// CursorVisible reports whether DECTCEM is set.
func (s *Screen) CursorVisible() bool { return s.cursorVisible }

// CursorStyle returns the DECSCUSR cursor shape.
func (s *Screen) CursorStyle() CursorStyle { return s.cursorStyle }

// AltScreen reports whether the alternate buffer is active.
func (s *Screen) AltScreen() bool { return s.alt }

// Title returns the window title set by OSC 0 or OSC 2.
func (s *Screen) Title() string { return s.title }

// IconName returns the icon name set by OSC 0 or OSC 1.
func (s *Screen) IconName() string { return s.iconName }

// Bells returns the number of BEL characters received.
func (s *Screen) Bells() int { return s.bells }

// Errors returns the number of malformed or unsupported sequences seen.
func (s *Screen) Errors() int { return s.errors }

// History returns the scrollback of the primary buffer.
func (s *Screen) History() *History { return s.history }

// Modes returns the current mode flags.
func (s *Screen) Modes() Modes {
	return Modes{
		AppCursor:      s.appCursor,
		AppKeypad:      s.appKeypad,
		BracketedPaste: s.bracketedPaste,
		AltScreen:      s.alt,
		CursorHidden:   !s.cursorVisible,
		AutoWrap:       s.autoWrap,
		Origin:         s.originMode,
	}
}

// Cell returns the cell at (row, col), or a blank cell when out of bounds.
func (s *Screen) Cell(row, col int) Cell {
	if row < 0 || row >= s.height || col < 0 || col >= s.width {
		return BlankCell()
	}
	return s.rows[row].Cells[col]
}

// Row returns a copy of the given row, or nil when out of bounds.
func (s *Screen) Row(row int) *Row {
	if row < 0 || row >= s.height {
		return nil
	}
	return s.rows[row].clone()
}

// Text returns the visible characters, one line per row, trailing spaces kept.
func (s *Screen) Text() string {
	var b strings.Builder
	for y, r := range s.rows {
		b.WriteString(r.Text())
		if y < len(s.rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (s *Screen) bell()       { s.bells++ }
func (s *Screen) countError() { s.errors++ }

// print writes one rune at the cursor using the current pen.
func (s *Screen) print(r rune) {
	w := runeWidth(r)
	if w == 0 {
		s.combine(r)
		return
	}
	if w > 2 {
		w = 2
	}
	if w > s.width {
		return
	}

	if s.cursorX+w > s.width {
		if s.autoWrap {
			if s.cursorX < s.width {
				// A wide grapheme that does not fit leaves the last column blank.
				s.rows[s.cursorY].Cells[s.cursorX] = BlankCell()
			}
			s.rows[s.cursorY].Wrapped = true
			s.cursorX = 0
			s.lineFeed()
		} else {
			s.cursorX = s.width - w
		}
	}

	row := s.rows[s.cursorY]
	s.splitWide(row, s.cursorX)
	if w == 2 {
		s.splitWide(row, s.cursorX+1)
	}
	row.Cells[s.cursorX] = Cell{Content: string(r), Width: w, Style: s.pen}
	if w == 2 {
		row.Cells[s.cursorX+1] = Cell{Width: 0, Style: s.pen}
	}
	s.cursorX += w
}

// combine appends a zero-width rune to the previous grapheme.
func (s *Screen) combine(r rune) {
	x := s.cursorX - 1
	if x >= s.width {
		x = s.width - 1
	}
	row := s.rows[s.cursorY]
	if x > 0 && row.Cells[x].IsContinuation() {
		x--
	}
	if x < 0 {
		return
	}
	row.Cells[x].Content += string(r)
}

// splitWide blanks the other half of a wide grapheme about to be overwritten at x.
func (s *Screen) splitWide(row *Row, x int) {
	if x < 0 || x >= len(row.Cells) {
		return
	}
	switch row.Cells[x].Width {
	case 2:
		if x+1 < len(row.Cells) {
			row.Cells[x+1] = BlankCell()
		}
	case 0:
		if x > 0 {
			row.Cells[x-1] = BlankCell()
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// moveCursor moves to an absolute position, relative to the scroll region
// when origin mode is set.
func (s *Screen) moveCursor(x, y int) {
	top, bottom := 0, s.height-1
	if s.originMode {
		top, bottom = s.scrollTop, s.scrollBottom
		y += top
	}
	s.cursorX = clamp(x, 0, s.width-1)
	s.cursorY = clamp(y, top, bottom)
}

// moveCursorRelative moves by a delta. Vertical motion stops at the scroll
// margins when the cursor starts inside the region.
func (s *Screen) moveCursorRelative(dx, dy int) {
	x := s.cursorX
	if x >= s.width {
		x = s.width - 1
	}
	top, bottom := 0, s.height-1
	if s.cursorY >= s.scrollTop && s.cursorY <= s.scrollBottom {
		top, bottom = s.scrollTop, s.scrollBottom
	}
	s.cursorX = clamp(x+dx, 0, s.width-1)
	s.cursorY = clamp(s.cursorY+dy, top, bottom)
}

func (s *Screen) setColumn(x int) {
	s.cursorX = clamp(x, 0, s.width-1)
}

func (s *Screen) setRow(y int) {
	x := s.cursorX
	if x >= s.width {
		x = s.width - 1
	}
	s.moveCursor(x, y)
}

func (s *Screen) carriageReturn() {
	s.cursorX = 0
}

// tab advances to the next multiple-of-8 column without writing cells.
func (s *Screen) tab() {
	x := s.cursorX
	if x >= s.width {
		x = s.width - 1
	}
	s.cursorX = clamp((x/8+1)*8, 0, s.width-1)
}

func (s *Screen) lineFeed() {
	switch {
	case s.cursorY == s.scrollBottom:
		s.scrollRegionUp(s.scrollTop, s.scrollBottom, 1, true)
	case s.cursorY < s.height-1:
		s.cursorY++
	}
}

func (s *Screen) reverseLineFeed() {
	switch {
	case s.cursorY == s.scrollTop:
		s.scrollRegionDown(s.scrollTop, s.scrollBottom, 1)
	case s.cursorY > 0:
		s.cursorY--
	}
}

func (s *Screen) scrollUp(n int) {
	s.scrollRegionUp(s.scrollTop, s.scrollBottom, n, true)
}

func (s *Screen) scrollDown(n int) {
	s.scrollRegionDown(s.scrollTop, s.scrollBottom, n)
}

// scrollRegionUp shifts rows [top, bottom] up by n. Rows leaving the top of the
// primary screen go to history when keep is set.
func (s *Screen) scrollRegionUp(top, bottom, n int, keep bool) {
	if n <= 0 || top < 0 || bottom >= s.height || top > bottom {
		return
	}
	if n > bottom-top+1 {
		n = bottom - top + 1
	}
	if keep && top == 0 && !s.alt {
		for y := 0; y < n; y++ {
			s.history.Add(s.rows[y])
		}
	}
	copy(s.rows[top:bottom+1], s.rows[top+n:bottom+1])
	for y := bottom - n + 1; y <= bottom; y++ {
		s.rows[y] = newRow(s.width)
	}
}

// scrollRegionDown shifts rows [top, bottom] down by n.
func (s *Screen) scrollRegionDown(top, bottom, n int) {
	if n <= 0 || top < 0 || bottom >= s.height || top > bottom {
		return
	}
	if n > bottom-top+1 {
		n = bottom - top + 1
	}
	copy(s.rows[top+n:bottom+1], s.rows[top:bottom+1-n])
	for y := top; y < top+n; y++ {
		s.rows[y] = newRow(s.width)
	}
}

func (s *Screen) setScrollRegion(top, bottom int) {
	top = clamp(top, 0, s.height-1)
	bottom = clamp(bottom, 0, s.height-1)
	if top >= bottom {
		return
	}
	s.scrollTop = top
	s.scrollBottom = bottom
	s.moveCursor(0, 0)
}

// eraseDisplay implements ED: 0 cursor to end, 1 start to cursor, 2 all,
// 3 scrollback.
func (s *Screen) eraseDisplay(mode int) {
	switch mode {
	case 0:
		s.rows[s.cursorY].clearRange(s.cursorX, s.width)
		for y := s.cursorY + 1; y < s.height; y++ {
			s.rows[y].clear()
		}
	case 1:
		for y := 0; y < s.cursorY; y++ {
			s.rows[y].clear()
		}
		s.rows[s.cursorY].clearRange(0, s.cursorX+1)
	case 2:
		for _, r := range s.rows {
			r.clear()
		}
	case 3:
		s.history.Clear()
	default:
		s.countError()
	}
}

// eraseLine implements EL: 0 cursor to end, 1 start to cursor, 2 whole line.
func (s *Screen) eraseLine(mode int) {
	row := s.rows[s.cursorY]
	switch mode {
	case 0:
		row.clearRange(s.cursorX, s.width)
	case 1:
		row.clearRange(0, s.cursorX+1)
	case 2:
		row.clear()
	default:
		s.countError()
	}
}

func (s *Screen) insertLines(n int) {
	if s.cursorY < s.scrollTop || s.cursorY > s.scrollBottom {
		return
	}
	s.scrollRegionDown(s.cursorY, s.scrollBottom, n)
	s.cursorX = 0
}

func (s *Screen) deleteLines(n int) {
	if s.cursorY < s.scrollTop || s.cursorY > s.scrollBottom {
		return
	}
	s.scrollRegionUp(s.cursorY, s.scrollBottom, n, false)
	s.cursorX = 0
}

func (s *Screen) insertChars(n int) {
	if n <= 0 || s.cursorX >= s.width {
		return
	}
	if n > s.width-s.cursorX {
		n = s.width - s.cursorX
	}
	cells := s.rows[s.cursorY].Cells
	copy(cells[s.cursorX+n:], cells[s.cursorX:s.width-n])
	for x := s.cursorX; x < s.cursorX+n; x++ {
		cells[x] = BlankCell()
	}
}

func (s *Screen) deleteChars(n int) {
	if n <= 0 || s.cursorX >= s.width {
		return
	}
	if n > s.width-s.cursorX {
		n = s.width - s.cursorX
	}
	cells := s.rows[s.cursorY].Cells
	copy(cells[s.cursorX:], cells[s.cursorX+n:])
	for x := s.width - n; x < s.width; x++ {
		cells[x] = BlankCell()
	}
}

func (s *Screen) eraseChars(n int) {
	if n <= 0 {
		return
	}
	s.rows[s.cursorY].clearRange(s.cursorX, s.cursorX+n)
}

func (s *Screen) savedSlot() *savedCursor {
	if s.alt {
		return &s.savedAlt
	}
	return &s.savedPrimary
}

func (s *Screen) saveCursor() {
	*s.savedSlot() = savedCursor{x: s.cursorX, y: s.cursorY, pen: s.pen, origin: s.originMode}
}

func (s *Screen) restoreCursor() {
	sc := s.savedSlot()
	s.cursorX = clamp(sc.x, 0, s.width)
	s.cursorY = clamp(sc.y, 0, s.height-1)
	s.pen = sc.pen
	s.originMode = sc.origin
}

// setAltScreen switches buffers. clear blanks the alternate buffer on entry;
// cursor saves on entry and restores on exit (mode 1049).
func (s *Screen) setAltScreen(on, clear, cursor bool) {
	if on == s.alt {
		return
	}
	if on {
		if cursor {
			s.saveCursor()
		}
		s.rows, s.other = s.other, s.rows
		s.alt = true
		if clear {
			for _, r := range s.rows {
				r.clear()
			}
		}
		return
	}
	s.rows, s.other = s.other, s.rows
	s.alt = false
	if cursor {
		s.restoreCursor()
	}
}

// Resize changes the grid to cols x rows. Cells still in bounds keep their
// content; when the grid loses rows below the cursor's row the top rows of
// the primary screen move to scrollback so the cursor row stays visible.
// Resizing to the current size is a no-op.
func (s *Screen) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if cols == s.width && rows == s.height {
		return
	}

	shift := 0
	if s.cursorY >= rows {
		shift = s.cursorY - rows + 1
	}
	primary, alternate := s.rows, s.other
	if s.alt {
		primary, alternate = s.other, s.rows
	}
	if !s.alt {
		for y := 0; y < shift; y++ {
			s.history.Add(primary[y])
		}
		primary = primary[shift:]
	} else {
		alternate = alternate[shift:]
	}

	primary = resizeRows(primary, cols, rows)
	alternate = resizeRows(alternate, cols, rows)
	if s.alt {
		s.rows, s.other = alternate, primary
	} else {
		s.rows, s.other = primary, alternate
	}

	s.width = cols
	s.height = rows
	s.scrollTop = 0
	s.scrollBottom = rows - 1
	s.cursorY = clamp(s.cursorY-shift, 0, rows-1)
	s.cursorX = clamp(s.cursorX, 0, cols-1)
	for _, sc := range []*savedCursor{&s.savedPrimary, &s.savedAlt} {
		sc.x = clamp(sc.x, 0, cols-1)
		sc.y = clamp(sc.y, 0, rows-1)
	}
}

func resizeRows(src []*Row, cols, rows int) []*Row {
	out := make([]*Row, rows)
	for y := range out {
		if y < len(src) {
			out[y] = src[y].resized(cols)
		} else {
			out[y] = newRow(cols)
		}
	}
	return out
}

// Reset performs a hard terminal reset (RIS). Both buffers are cleared and
// modes return to their defaults; the title, counters and scrollback survive.
func (s *Screen) Reset() {
	if s.alt {
		s.rows, s.other = s.other, s.rows
		s.alt = false
	}
	for _, r := range s.rows {
		r.clear()
	}
	for _, r := range s.other {
		r.clear()
	}
	s.resetState()
}
