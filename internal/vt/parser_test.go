package vt

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func newTerm(cols, rows int) (*Screen, *Parser) {
	s := NewScreen(cols, rows, DefaultScrollback)
	return s, NewParser(s)
}

func rowText(s *Screen, row int) string {
	return strings.TrimRight(s.Row(row).Text(), " ")
}

func TestParser_PlainText(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("Hello")

	if got := rowText(s, 0); got != "Hello" {
		t.Errorf("row 0 = %q, want %q", got, "Hello")
	}
	if r, c := s.Cursor(); r != 0 || c != 5 {
		t.Errorf("cursor = (%d,%d), want (0,5)", r, c)
	}
}

func TestParser_CarriageReturnLineFeed(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("ABC\rX\nY")

	if got := rowText(s, 0); got != "XBC" {
		t.Errorf("row 0 = %q", got)
	}
	// LF alone keeps the column.
	if got := s.Cell(1, 1).Content; got != "Y" {
		t.Errorf("cell (1,1) = %q, want Y", got)
	}
}

func TestParser_Backspace(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("AB\bC")
	if got := rowText(s, 0); got != "AC" {
		t.Errorf("row 0 = %q", got)
	}
	p.ParseString("\r\b\b")
	if _, c := s.Cursor(); c != 0 {
		t.Errorf("backspace past column 0 moved cursor to %d", c)
	}
}

func TestParser_Tab(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("A\tB")

	if got := s.Cell(0, 8).Content; got != "B" {
		t.Errorf("cell (0,8) = %q, want B", got)
	}
	for x := 1; x < 8; x++ {
		if !s.Cell(0, x).IsBlank() {
			t.Errorf("tab wrote into cell %d", x)
		}
	}

	p.ParseString("\x1b[1;79H\t")
	if _, c := s.Cursor(); c != 79 {
		t.Errorf("tab near the margin: col = %d, want 79", c)
	}
}

func TestParser_Bell(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("a\x07b\x07")
	if s.Bells() != 2 {
		t.Errorf("Bells() = %d, want 2", s.Bells())
	}
	if got := rowText(s, 0); got != "ab" {
		t.Errorf("BEL wrote a cell: %q", got)
	}
}

func TestParser_WrapAtRightMargin(t *testing.T) {
	s, p := newTerm(5, 3)
	p.ParseString("ABCDE")
	if r, c := s.Cursor(); r != 0 || c != 4 {
		t.Errorf("pending wrap cursor = (%d,%d), want (0,4)", r, c)
	}

	p.ParseString("FG")
	if got := rowText(s, 0); got != "ABCDE" {
		t.Errorf("row 0 = %q", got)
	}
	if got := rowText(s, 1); got != "FG" {
		t.Errorf("row 1 = %q", got)
	}
	if !s.Row(0).Wrapped {
		t.Error("row 0 should be marked wrapped")
	}
}

func TestParser_NoWrapWhenAutoWrapOff(t *testing.T) {
	s, p := newTerm(5, 3)
	p.ParseString("\x1b[?7lABCDEFG")
	if got := rowText(s, 0); got != "ABCDG" {
		t.Errorf("row 0 = %q, want ABCDG", got)
	}
	if got := rowText(s, 1); got != "" {
		t.Errorf("row 1 = %q, want empty", got)
	}
}

func TestParser_ScrollIntoHistory(t *testing.T) {
	s, p := newTerm(10, 3)
	p.ParseString("one\r\ntwo\r\nthree\r\nfour")

	if got := rowText(s, 0); got != "two" {
		t.Errorf("row 0 = %q, want two", got)
	}
	if got := rowText(s, 2); got != "four" {
		t.Errorf("row 2 = %q, want four", got)
	}
	h := s.History()
	if h.Len() != 1 || strings.TrimRight(h.Row(0).Text(), " ") != "one" {
		t.Errorf("history = %d rows", h.Len())
	}
}

func TestParser_CursorMovement(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		row, col int
	}{
		{"CUP", "\x1b[5;10H", 4, 9},
		{"CUP default", "\x1b[5;10H\x1b[H", 0, 0},
		{"HVP", "\x1b[3;4f", 2, 3},
		{"CUU", "\x1b[10;10H\x1b[3A", 6, 9},
		{"CUD", "\x1b[10;10H\x1b[2B", 11, 9},
		{"CUF", "\x1b[10;10H\x1b[5C", 9, 14},
		{"CUB", "\x1b[10;10H\x1b[4D", 9, 5},
		{"CUB default", "\x1b[10;10H\x1b[D", 9, 8},
		{"clamp up", "\x1b[2;2H\x1b[99A", 0, 1},
		{"clamp right", "\x1b[99C", 0, 79},
		{"clamp CUP", "\x1b[999;999H", 23, 79},
		{"CNL", "\x1b[5;5H\x1b[2E", 6, 0},
		{"CPL", "\x1b[5;5H\x1b[2F", 2, 0},
		{"CHA", "\x1b[5;5H\x1b[20G", 4, 19},
		{"VPA", "\x1b[5;5H\x1b[12d", 11, 4},
		{"NEL", "\x1b[5;5H\x1bE", 5, 0},
		{"RI", "\x1b[5;5H\x1bM", 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTerm(80, 24)
			p.ParseString(tt.input)
			if r, c := s.Cursor(); r != tt.row || c != tt.col {
				t.Errorf("cursor = (%d,%d), want (%d,%d)", r, c, tt.row, tt.col)
			}
			if s.Errors() != 0 {
				t.Errorf("Errors() = %d", s.Errors())
			}
		})
	}
}

func fill(p *Parser, rows int) {
	for y := 0; y < rows; y++ {
		if y > 0 {
			p.ParseString("\r\n")
		}
		p.ParseString("XXXXXXXXXX")
	}
}

func TestParser_EraseDisplay(t *testing.T) {
	tests := []struct {
		mode string
		want []string
	}{
		{"0", []string{"XXXXXXXXXX", "XXXX", ""}},
		{"1", []string{"", "     XXXXX", "XXXXXXXXXX"}},
		{"2", []string{"", "", ""}},
	}
	for _, tt := range tests {
		t.Run("ED"+tt.mode, func(t *testing.T) {
			s, p := newTerm(10, 3)
			fill(p, 3)
			p.ParseString("\x1b[2;5H\x1b[" + tt.mode + "J")
			for y, want := range tt.want {
				if got := rowText(s, y); got != want {
					t.Errorf("row %d = %q, want %q", y, got, want)
				}
			}
		})
	}
}

func TestParser_EraseLine(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"", "XXXX"},
		{"0", "XXXX"},
		{"1", "     XXXXX"},
		{"2", ""},
	}
	for _, tt := range tests {
		t.Run("EL"+tt.mode, func(t *testing.T) {
			s, p := newTerm(10, 3)
			fill(p, 3)
			p.ParseString("\x1b[2;5H\x1b[" + tt.mode + "K")
			if got := rowText(s, 1); got != tt.want {
				t.Errorf("row 1 = %q, want %q", got, tt.want)
			}
			if got := rowText(s, 0); got != "XXXXXXXXXX" {
				t.Errorf("EL touched row 0: %q", got)
			}
		})
	}
}

func TestParser_EraseLineRoundTrip(t *testing.T) {
	s, p := newTerm(20, 2)
	p.ParseString("\x1b[1;4;31;44mSOME STYLED TEXT\x1b[2K")

	row := s.Row(0)
	for x, c := range row.Cells {
		if c != BlankCell() {
			t.Fatalf("cell %d = %+v, want blank", x, c)
		}
	}
}

func TestParser_ClearAndHome(t *testing.T) {
	s, p := newTerm(20, 5)
	p.ParseString("first line\r\nsecond line\x1b[2J\x1b[H")

	for y := 0; y < 5; y++ {
		for x := 0; x < 20; x++ {
			if !s.Cell(y, x).IsBlank() {
				t.Fatalf("cell (%d,%d) not blank after ED 2", y, x)
			}
		}
	}
	if r, c := s.Cursor(); r != 0 || c != 0 {
		t.Errorf("cursor = (%d,%d), want (0,0)", r, c)
	}
}

func TestParser_SGRAttributes(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1b[1;3;4;7mA\x1b[22;23mB\x1b[0mC")

	a := s.Cell(0, 0).Style.Attrs
	if !a.Has(AttrBold | AttrItalic | AttrUnderline | AttrInverse) {
		t.Errorf("A attrs = %b", a)
	}
	b := s.Cell(0, 1).Style.Attrs
	if b.Has(AttrBold) || b.Has(AttrItalic) || !b.Has(AttrUnderline|AttrInverse) {
		t.Errorf("B attrs = %b", b)
	}
	if !s.Cell(0, 2).Style.IsDefault() {
		t.Errorf("C style = %+v, want default", s.Cell(0, 2).Style)
	}
}

func TestParser_SGRColors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		fg    Color
		bg    Color
	}{
		{"standard", "\x1b[31;42m", ColorRed, ColorGreen},
		{"bright", "\x1b[91;104m", ColorBrightRed, ColorBrightBlue},
		{"256", "\x1b[38;5;196;48;5;240m", IndexedColor(196), IndexedColor(240)},
		{"rgb", "\x1b[38;2;10;20;30;48;2;200;100;50m", RGBColor(10, 20, 30), RGBColor(200, 100, 50)},
		{"colon form", "\x1b[38:5:21m", IndexedColor(21), DefaultColor},
		{"reset fg", "\x1b[31;39m", DefaultColor, DefaultColor},
		{"reset bg", "\x1b[41;49m", DefaultColor, DefaultColor},
		{"empty resets", "\x1b[31;41m\x1b[m", DefaultColor, DefaultColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTerm(80, 24)
			p.ParseString(tt.input + "X")
			st := s.Cell(0, 0).Style
			if st.Fg != tt.fg {
				t.Errorf("fg = %+v, want %+v", st.Fg, tt.fg)
			}
			if st.Bg != tt.bg {
				t.Errorf("bg = %+v, want %+v", st.Bg, tt.bg)
			}
		})
	}
}

func TestParser_SGRMalformedColorCounted(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1b[38;5mX\x1b[38;5;300mY")
	if s.Errors() != 2 {
		t.Errorf("Errors() = %d, want 2", s.Errors())
	}
	if !s.Cell(0, 0).Style.Fg.Default {
		t.Error("malformed color changed the pen")
	}
}

func TestParser_PrivateModes(t *testing.T) {
	s, p := newTerm(80, 24)

	p.ParseString("\x1b[?25l\x1b[?1h\x1b[?2004h\x1b=")
	m := s.Modes()
	if !m.CursorHidden || s.CursorVisible() {
		t.Error("cursor should be hidden")
	}
	if !m.AppCursor || !m.BracketedPaste || !m.AppKeypad {
		t.Errorf("modes = %+v", m)
	}

	p.ParseString("\x1b[?25h\x1b[?1l\x1b[?2004l\x1b>")
	m = s.Modes()
	if m.CursorHidden || m.AppCursor || m.BracketedPaste || m.AppKeypad {
		t.Errorf("modes after reset = %+v", m)
	}

	// Several modes in one sequence.
	p.ParseString("\x1b[?1;2004h")
	if m := s.Modes(); !m.AppCursor || !m.BracketedPaste {
		t.Errorf("combined set = %+v", m)
	}
	if s.Errors() != 0 {
		t.Errorf("Errors() = %d", s.Errors())
	}
}

func TestParser_AlternateScreen(t *testing.T) {
	s, p := newTerm(20, 5)
	p.ParseString("primary\x1b[3;3H")

	p.ParseString("\x1b[?1049h")
	if !s.AltScreen() {
		t.Fatal("alt screen not active")
	}
	if got := rowText(s, 0); got != "" {
		t.Errorf("alt buffer not clear: %q", got)
	}
	p.ParseString("\x1b[Hvim")

	p.ParseString("\x1b[?1049l")
	if s.AltScreen() {
		t.Fatal("alt screen still active")
	}
	if got := rowText(s, 0); got != "primary" {
		t.Errorf("primary content lost: %q", got)
	}
	if r, c := s.Cursor(); r != 2 || c != 2 {
		t.Errorf("cursor not restored: (%d,%d)", r, c)
	}
}

func TestParser_AltScreenDoesNotFeedHistory(t *testing.T) {
	s, p := newTerm(10, 2)
	p.ParseString("\x1b[?1049h")
	p.ParseString("a\r\nb\r\nc\r\nd")
	if s.History().Len() != 0 {
		t.Errorf("alt screen scrolled into history: %d", s.History().Len())
	}
}

func TestParser_OSCTitle(t *testing.T) {
	s, p := newTerm(80, 24)

	p.ParseString("\x1b]0;both\x07")
	if s.Title() != "both" || s.IconName() != "both" {
		t.Errorf("OSC 0: title=%q icon=%q", s.Title(), s.IconName())
	}

	p.ParseString("\x1b]2;window title\x1b\\")
	if s.Title() != "window title" {
		t.Errorf("OSC 2 with ST: %q", s.Title())
	}
	if s.IconName() != "both" {
		t.Errorf("OSC 2 changed icon: %q", s.IconName())
	}

	p.ParseString("\x1b]1;icon\x07")
	if s.IconName() != "icon" || s.Title() != "window title" {
		t.Errorf("OSC 1: title=%q icon=%q", s.Title(), s.IconName())
	}

	if rowText(s, 0) != "" {
		t.Error("OSC leaked onto the screen")
	}
}

func TestParser_OSCIgnoredCommands(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1b]8;;http://example.com\x07link\x1b]8;;\x07")
	if got := rowText(s, 0); got != "link" {
		t.Errorf("row 0 = %q", got)
	}
	if s.Errors() != 0 {
		t.Errorf("Errors() = %d", s.Errors())
	}
}

func TestParser_DCSSwallowed(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1bP1$r0m\x1b\\ok")
	if got := rowText(s, 0); got != "ok" {
		t.Errorf("row 0 = %q", got)
	}
}

func TestParser_ErrorsCountedNotFatal(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown CSI final", "\x1b[5Z"},
		{"unknown private mode", "\x1b[?9999h"},
		{"non-numeric OSC", "\x1b]abc\x07"},
		{"invalid UTF-8", "\xff"},
		{"truncated UTF-8", "\xe4\xb8A"},
		{"CSI cancelled", "\x1b[12\x18"},
		{"bad ED mode", "\x1b[7J"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTerm(80, 24)
			p.ParseString(tt.input + "ok")
			if s.Errors() == 0 {
				t.Error("error not counted")
			}
			if !strings.Contains(rowText(s, 0), "ok") {
				t.Errorf("stream did not continue: %q", rowText(s, 0))
			}
		})
	}
}

func TestParser_CancelInsideEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"CAN after ESC", "a\x1b\x18[31mb", "a[31mb"},
		{"SUB after ESC", "a\x1b\x1a7b", "a7b"},
		{"CAN after intermediate", "a\x1b(\x18Bb", "aBb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTerm(80, 24)
			p.ParseString(tt.input)
			if got := rowText(s, 0); got != tt.want {
				t.Errorf("row 0 = %q, want %q", got, tt.want)
			}
			if s.Errors() != 1 {
				t.Errorf("errors = %d, want 1", s.Errors())
			}
			if fg := s.Cell(0, 1).Style.Fg; fg != DefaultColor {
				t.Errorf("cancelled sequence applied: fg = %+v", fg)
			}
		})
	}
}

func TestParser_RandomBytesNeverPanic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s, p := newTerm(40, 10)
	buf := make([]byte, 4096)
	for i := 0; i < 50; i++ {
		rng.Read(buf)
		p.Parse(buf)
	}
	cols, rows := s.Size()
	if cols != 40 || rows != 10 {
		t.Errorf("size changed to %dx%d", cols, rows)
	}
	r, c := s.Cursor()
	if r < 0 || r >= rows || c < 0 || c >= cols {
		t.Errorf("cursor out of bounds: (%d,%d)", r, c)
	}
}

const mixedStream = "plain \x1b[1;31mred\x1b[0m h\xc3\xa9llo \xe4\xb8\x96\xe7\x95\x8c\r\n" +
	"\x1b]0;title here\x07\x1b[38;5;208morange\x1b[48;2;1;2;3m rgb \x1b[m\r\n" +
	"\x1b[?1049h\x1b[2J\x1b[5;5Halt\x1b[?1049l\x1b]2;st title\x1b\\" +
	"\x1b[10;1Hline ten\x1b[K\ttab\x07\x1bP+q\x1b\\\x1b[3;20r\x1b[20;1H\n\n\n" +
	"e\xcc\x81 \xff bad \x1b[99Z\x1b7\x1b[1;1H\x1b8done"

func TestParser_ChunkIndependence(t *testing.T) {
	whole, wp := newTerm(40, 20)
	wp.ParseString(mixedStream)

	bytewise, bp := newTerm(40, 20)
	for i := 0; i < len(mixedStream); i++ {
		bp.Parse([]byte{mixedStream[i]})
	}

	if !reflect.DeepEqual(whole, bytewise) {
		t.Errorf("byte-at-a-time screen differs:\nwhole:\n%s\nbytewise:\n%s", whole.Text(), bytewise.Text())
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		chunked, cp := newTerm(40, 20)
		data := []byte(mixedStream)
		for len(data) > 0 {
			n := 1 + rng.Intn(7)
			if n > len(data) {
				n = len(data)
			}
			cp.Parse(data[:n])
			data = data[n:]
		}
		if !reflect.DeepEqual(whole, chunked) {
			t.Fatalf("trial %d: random chunking changed the screen", trial)
		}
	}
}

func TestParser_WideAndCombining(t *testing.T) {
	s, p := newTerm(10, 2)
	p.ParseString("世a")

	if c := s.Cell(0, 0); c.Content != "世" || c.Width != 2 {
		t.Errorf("wide cell = %+v", c)
	}
	if !s.Cell(0, 1).IsContinuation() {
		t.Error("cell 1 should be a continuation")
	}
	if s.Cell(0, 2).Content != "a" {
		t.Errorf("cell 2 = %q", s.Cell(0, 2).Content)
	}

	p.ParseString("\r\ne\u0301")
	if got := s.Cell(1, 0).Content; got != "e\u0301" {
		t.Errorf("combined cell = %q", got)
	}
	if _, c := s.Cursor(); c != 1 {
		t.Errorf("combining mark advanced the cursor to %d", c)
	}
}

func TestParser_WideCharWrapsWhole(t *testing.T) {
	s, p := newTerm(5, 2)
	p.ParseString("abcd世")
	if got := rowText(s, 0); got != "abcd" {
		t.Errorf("row 0 = %q", got)
	}
	if s.Cell(1, 0).Content != "世" {
		t.Errorf("wide char did not wrap: %+v", s.Cell(1, 0))
	}
}

func TestParser_ScrollRegion(t *testing.T) {
	s, p := newTerm(10, 5)
	p.ParseString("r0\r\nr1\r\nr2\r\nr3\r\nr4")
	p.ParseString("\x1b[2;4r")
	if r, c := s.Cursor(); r != 0 || c != 0 {
		t.Errorf("DECSTBM should home the cursor, got (%d,%d)", r, c)
	}
	p.ParseString("\x1b[4;1H\n")

	want := []string{"r0", "r2", "r3", "", "r4"}
	for y, w := range want {
		if got := rowText(s, y); got != w {
			t.Errorf("row %d = %q, want %q", y, got, w)
		}
	}
	if s.History().Len() != 0 {
		t.Error("scrolling inside a region should not feed history")
	}
}

func TestParser_InsertDeleteLines(t *testing.T) {
	s, p := newTerm(10, 4)
	p.ParseString("a\r\nb\r\nc\r\nd\x1b[2;1H\x1b[L")
	want := []string{"a", "", "b", "c"}
	for y, w := range want {
		if got := rowText(s, y); got != w {
			t.Errorf("after IL row %d = %q, want %q", y, got, w)
		}
	}

	p.ParseString("\x1b[2M")
	want = []string{"a", "c", "", ""}
	for y, w := range want {
		if got := rowText(s, y); got != w {
			t.Errorf("after DL row %d = %q, want %q", y, got, w)
		}
	}
}

func TestParser_InsertDeleteEraseChars(t *testing.T) {
	s, p := newTerm(10, 1)
	p.ParseString("abcdef\x1b[1;3H\x1b[2@")
	if got := rowText(s, 0); got != "ab  cdef" {
		t.Errorf("ICH: %q", got)
	}
	p.ParseString("\x1b[3P")
	if got := rowText(s, 0); got != "abdef" {
		t.Errorf("DCH: %q", got)
	}
	p.ParseString("\x1b[2X")
	if got := rowText(s, 0); got != "ab  f" {
		t.Errorf("ECH: %q", got)
	}
}

func TestParser_SaveRestoreCursor(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1b[5;6H\x1b[31m\x1b7\x1b[H\x1b[0m\x1b8X")
	if r, c := s.Cursor(); r != 4 || c != 6 {
		t.Errorf("cursor = (%d,%d), want (4,6)", r, c)
	}
	if s.Cell(4, 5).Style.Fg != ColorRed {
		t.Error("DECRC did not restore the pen")
	}

	p.ParseString("\x1b[10;10H\x1b[s\x1b[1;1H\x1b[u")
	if r, c := s.Cursor(); r != 9 || c != 9 {
		t.Errorf("SCORC cursor = (%d,%d)", r, c)
	}
}

func TestParser_CursorStyle(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1b[5 q")
	if s.CursorStyle() != CursorBar {
		t.Errorf("CursorStyle() = %v, want bar", s.CursorStyle())
	}
	p.ParseString("\x1b[3 q")
	if s.CursorStyle() != CursorUnderline {
		t.Errorf("CursorStyle() = %v, want underline", s.CursorStyle())
	}
}

func TestParser_RIS(t *testing.T) {
	s, p := newTerm(10, 3)
	p.ParseString("\x1b]2;keep\x07text\x1b[?25l\x1b[?1h\x1bc")

	if rowText(s, 0) != "" {
		t.Error("RIS left content")
	}
	if !s.CursorVisible() || s.Modes().AppCursor {
		t.Error("RIS left modes set")
	}
	if s.Title() != "keep" {
		t.Errorf("RIS dropped the title: %q", s.Title())
	}
}

func TestParser_SplitSequences(t *testing.T) {
	s, p := newTerm(80, 24)
	p.ParseString("\x1b")
	p.ParseString("[3")
	p.ParseString("1m")
	p.ParseString("\xe4")
	p.ParseString("\xb8\x96")
	p.ParseString("\x1b]2;ti")
	p.ParseString("tle\x1b")
	p.ParseString("\\")

	c := s.Cell(0, 0)
	if c.Content != "世" || c.Style.Fg != ColorRed {
		t.Errorf("cell = %+v", c)
	}
	if s.Title() != "title" {
		t.Errorf("Title() = %q", s.Title())
	}
	if s.Errors() != 0 {
		t.Errorf("Errors() = %d", s.Errors())
	}
}
