package vt

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	maxParams     = 32
	maxParamValue = 65535
	maxOSCLen     = 4096
)

// Parser is a byte-level VT100/xterm state machine driving a Screen.
//
// All state lives in the parser, so splitting the input into chunks at any
// boundary yields the same screen as feeding it in one call. Malformed or
// unsupported sequences increment the screen's error counter and parsing
// resumes with the next byte.
type Parser struct {
	screen *Screen

	state  parserState
	params []int
	// paramSet marks that the current parameter has at least one digit.
	paramSet bool
	prefix   byte   // private marker: '?', '>', '=' or '<'
	inter    []byte // intermediate bytes
	osc      []byte
	oscEsc   bool // ESC seen inside an OSC or DCS string
	bad      bool // current CSI is malformed and will be dropped

	utf8Buf   [utf8.UTFMax]byte
	utf8Len   int // expected length of the pending sequence
	utf8Count int // bytes collected so far
}

type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeInter
	stateCSI
	stateOSC
	stateDCS
)

// NewParser creates a parser that mutates screen.
func NewParser(screen *Screen) *Parser {
	return &Parser{
		screen: screen,
		params: make([]int, 0, maxParams),
		inter:  make([]byte, 0, 4),
		osc:    make([]byte, 0, 256),
	}
}

// Screen returns the screen the parser writes to.
func (p *Parser) Screen() *Screen {
	return p.screen
}

// Parse feeds bytes to the state machine.
func (p *Parser) Parse(data []byte) {
	for _, b := range data {
		p.processByte(b)
	}
}

// ParseString feeds a string to the state machine.
func (p *Parser) ParseString(s string) {
	for i := 0; i < len(s); i++ {
		p.processByte(s[i])
	}
}

func (p *Parser) processByte(b byte) {
	switch p.state {
	case stateGround:
		p.processGround(b)
	case stateEscape:
		p.processEscape(b)
	case stateEscapeInter:
		p.processEscapeInter(b)
	case stateCSI:
		p.processCSI(b)
	case stateOSC:
		p.processOSC(b)
	case stateDCS:
		p.processDCS(b)
	}
}

func (p *Parser) processGround(b byte) {
	if p.utf8Len > 0 {
		p.processUTF8Continuation(b)
		return
	}

	switch {
	case b == 0x1B:
		p.enterEscape()
	case b < 0x20 || b == 0x7F:
		p.execute(b)
	case b < 0x80:
		p.screen.print(rune(b))
	case b >= 0xC2 && b < 0xE0:
		p.startUTF8(b, 2)
	case b >= 0xE0 && b < 0xF0:
		p.startUTF8(b, 3)
	case b >= 0xF0 && b < 0xF5:
		p.startUTF8(b, 4)
	default:
		// Stray continuation byte or invalid lead.
		p.screen.countError()
		p.screen.print(utf8.RuneError)
	}
}

// execute handles C0 control characters.
func (p *Parser) execute(b byte) {
	switch b {
	case 0x07: // BEL
		p.screen.bell()
	case 0x08: // BS
		p.screen.moveCursorRelative(-1, 0)
	case 0x09: // HT
		p.screen.tab()
	case 0x0A, 0x0B, 0x0C: // LF, VT, FF
		p.screen.lineFeed()
	case 0x0D: // CR
		p.screen.carriageReturn()
	case 0x0E, 0x0F: // SO, SI: charset shifts are not supported
	}
}

func (p *Parser) startUTF8(b byte, n int) {
	p.utf8Buf[0] = b
	p.utf8Len = n
	p.utf8Count = 1
}

func (p *Parser) processUTF8Continuation(b byte) {
	if b < 0x80 || b >= 0xC0 {
		p.utf8Len = 0
		p.utf8Count = 0
		p.screen.countError()
		p.screen.print(utf8.RuneError)
		p.processGround(b)
		return
	}

	p.utf8Buf[p.utf8Count] = b
	p.utf8Count++
	if p.utf8Count < p.utf8Len {
		return
	}

	r, size := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
	p.utf8Len = 0
	p.utf8Count = 0
	if r == utf8.RuneError && size <= 1 {
		// Overlong encoding or surrogate.
		p.screen.countError()
	}
	p.screen.print(r)
}

func (p *Parser) enterEscape() {
	p.state = stateEscape
	p.inter = p.inter[:0]
}

func (p *Parser) processEscape(b byte) {
	p.state = stateGround
	switch {
	case b == '[':
		p.enterCSI()
	case b == ']':
		p.state = stateOSC
		p.osc = p.osc[:0]
		p.oscEsc = false
	case b == 'P':
		p.state = stateDCS
		p.oscEsc = false
	case b == '7': // DECSC
		p.screen.saveCursor()
	case b == '8': // DECRC
		p.screen.restoreCursor()
	case b == 'D': // IND
		p.screen.lineFeed()
	case b == 'E': // NEL
		p.screen.carriageReturn()
		p.screen.lineFeed()
	case b == 'M': // RI
		p.screen.reverseLineFeed()
	case b == 'c': // RIS
		p.screen.Reset()
	case b == '=': // DECKPAM
		p.screen.appKeypad = true
	case b == '>': // DECKPNM
		p.screen.appKeypad = false
	case b == '\\': // stray ST
	case b == 0x1B:
		p.screen.countError()
		p.enterEscape()
	case b == 0x18 || b == 0x1A: // CAN, SUB
		p.screen.countError()
	case b < 0x20:
		// C0 inside an escape sequence executes and keeps the sequence alive.
		p.execute(b)
		p.state = stateEscape
	case b >= 0x20 && b <= 0x2F:
		p.inter = append(p.inter, b)
		p.state = stateEscapeInter
	default:
		p.screen.countError()
	}
}

func (p *Parser) processEscapeInter(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		p.inter = append(p.inter, b)
	case b >= 0x30 && b <= 0x7E:
		p.handleEscapeSequence(b)
		p.state = stateGround
	case b == 0x1B:
		p.screen.countError()
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.screen.countError()
		p.state = stateGround
	case b < 0x20:
		p.execute(b)
	default:
		p.screen.countError()
		p.state = stateGround
	}
}

// handleEscapeSequence handles ESC with intermediates: charset designation
// (ESC ( B and friends) is accepted and ignored.
func (p *Parser) handleEscapeSequence(final byte) {
	switch p.inter[0] {
	case '(', ')', '*', '+', '-', '.', '/', '%':
		return
	case '#':
		if final == '8' { // DECALN is not supported but is well-formed
			return
		}
	case ' ':
		return
	}
	p.screen.countError()
}

func (p *Parser) enterCSI() {
	p.state = stateCSI
	p.params = p.params[:0]
	p.paramSet = false
	p.prefix = 0
	p.inter = p.inter[:0]
	p.bad = false
}

func (p *Parser) processCSI(b byte) {
	switch {
	case b >= '0' && b <= '9':
		if len(p.inter) > 0 {
			p.bad = true
			return
		}
		if !p.paramSet {
			if len(p.params) == maxParams {
				p.bad = true
				return
			}
			p.params = append(p.params, 0)
			p.paramSet = true
		}
		i := len(p.params) - 1
		if v := p.params[i]*10 + int(b-'0'); v <= maxParamValue {
			p.params[i] = v
		} else {
			p.params[i] = maxParamValue
		}
	case b == ';' || b == ':':
		if len(p.inter) > 0 {
			p.bad = true
			return
		}
		if !p.paramSet {
			if len(p.params) == maxParams {
				p.bad = true
				return
			}
			p.params = append(p.params, 0)
		}
		p.paramSet = false
	case b >= '<' && b <= '?':
		if p.prefix != 0 || len(p.params) > 0 || p.paramSet || len(p.inter) > 0 {
			p.bad = true
			return
		}
		p.prefix = b
	case b >= 0x20 && b <= 0x2F:
		p.inter = append(p.inter, b)
	case b >= 0x40 && b <= 0x7E:
		p.state = stateGround
		if p.bad {
			p.screen.countError()
			return
		}
		p.handleCSI(b)
	case b == 0x1B:
		p.screen.countError()
		p.enterEscape()
	case b == 0x18 || b == 0x1A: // CAN, SUB
		p.screen.countError()
		p.state = stateGround
	case b < 0x20:
		p.execute(b)
	case b == 0x7F:
	default:
		p.bad = true
	}
}

func (p *Parser) processOSC(b byte) {
	if p.oscEsc {
		p.oscEsc = false
		p.handleOSC()
		if b == '\\' {
			p.state = stateGround
			return
		}
		// ESC not followed by '\' ends the string and starts a new escape.
		p.enterEscape()
		p.processEscape(b)
		return
	}
	switch {
	case b == 0x07:
		p.handleOSC()
		p.state = stateGround
	case b == 0x1B:
		p.oscEsc = true
	case b == 0x18 || b == 0x1A:
		p.screen.countError()
		p.state = stateGround
	case b < 0x20:
		// Other C0 controls are ignored inside OSC strings.
	default:
		if len(p.osc) < maxOSCLen {
			p.osc = append(p.osc, b)
		}
	}
}

// processDCS swallows a device control string up to ST.
func (p *Parser) processDCS(b byte) {
	if p.oscEsc {
		p.oscEsc = false
		if b == '\\' {
			p.state = stateGround
			return
		}
		p.enterEscape()
		p.processEscape(b)
		return
	}
	switch b {
	case 0x1B:
		p.oscEsc = true
	case 0x18, 0x1A:
		p.state = stateGround
	}
}

// param returns parameter i, or def when it is missing or zero.
func (p *Parser) param(i, def int) int {
	if i < len(p.params) && p.params[i] > 0 {
		return p.params[i]
	}
	return def
}

func (p *Parser) handleCSI(final byte) {
	if p.prefix == '?' {
		p.handlePrivateCSI(final)
		return
	}
	if p.prefix != 0 {
		// Secondary DA and similar queries need a reply channel; accepted, ignored.
		if final == 'c' || final == 'm' || final == 'n' || final == 'q' {
			return
		}
		p.unsupported()
		return
	}
	if len(p.inter) > 0 {
		if len(p.inter) == 1 && p.inter[0] == ' ' && final == 'q' {
			p.handleCursorStyle()
			return
		}
		if len(p.inter) == 1 && p.inter[0] == '!' && final == 'p' { // DECSTR
			p.screen.Reset()
			return
		}
		p.unsupported()
		return
	}

	s := p.screen
	switch final {
	case 'A': // CUU
		s.moveCursorRelative(0, -p.param(0, 1))
	case 'B', 'e': // CUD, VPR
		s.moveCursorRelative(0, p.param(0, 1))
	case 'C', 'a': // CUF, HPR
		s.moveCursorRelative(p.param(0, 1), 0)
	case 'D': // CUB
		s.moveCursorRelative(-p.param(0, 1), 0)
	case 'E': // CNL
		s.moveCursorRelative(0, p.param(0, 1))
		s.carriageReturn()
	case 'F': // CPL
		s.moveCursorRelative(0, -p.param(0, 1))
		s.carriageReturn()
	case 'G', '`': // CHA, HPA
		s.setColumn(p.param(0, 1) - 1)
	case 'H', 'f': // CUP, HVP
		s.moveCursor(p.param(1, 1)-1, p.param(0, 1)-1)
	case 'd': // VPA
		s.setRow(p.param(0, 1) - 1)
	case 'J': // ED
		s.eraseDisplay(p.param(0, 0))
	case 'K': // EL
		s.eraseLine(p.param(0, 0))
	case 'L': // IL
		s.insertLines(p.param(0, 1))
	case 'M': // DL
		s.deleteLines(p.param(0, 1))
	case '@': // ICH
		s.insertChars(p.param(0, 1))
	case 'P': // DCH
		s.deleteChars(p.param(0, 1))
	case 'X': // ECH
		s.eraseChars(p.param(0, 1))
	case 'S': // SU
		s.scrollUp(p.param(0, 1))
	case 'T': // SD
		s.scrollDown(p.param(0, 1))
	case 'm': // SGR
		p.handleSGR()
	case 'r': // DECSTBM
		s.setScrollRegion(p.param(0, 1)-1, p.param(1, s.height)-1)
	case 's': // SCOSC
		s.saveCursor()
	case 'u': // SCORC
		s.restoreCursor()
	case 'h', 'l': // SM, RM: ANSI modes (IRM, LNM) are not emulated
	case 'n', 'c', 't': // DSR, DA, window ops: replies are not generated
	case 'g': // TBC: tab stops are fixed
	default:
		p.unsupported()
	}
}

func (p *Parser) unsupported() {
	p.screen.countError()
}

func (p *Parser) handleCursorStyle() {
	switch p.param(0, 1) {
	case 1, 2:
		p.screen.cursorStyle = CursorBlock
	case 3, 4:
		p.screen.cursorStyle = CursorUnderline
	case 5, 6:
		p.screen.cursorStyle = CursorBar
	}
}

func (p *Parser) handlePrivateCSI(final byte) {
	switch final {
	case 'h':
		p.setPrivateModes(true)
	case 'l':
		p.setPrivateModes(false)
	case 'J', 'K': // DECSED, DECSEL: no protected cells, same as ED/EL
		if final == 'J' {
			p.screen.eraseDisplay(p.param(0, 0))
		} else {
			p.screen.eraseLine(p.param(0, 0))
		}
	case 's', 'r', 'n', 'u':
		// Mode save/restore and status queries are accepted and ignored.
	default:
		p.unsupported()
	}
}

func (p *Parser) setPrivateModes(set bool) {
	s := p.screen
	for _, mode := range p.params {
		switch mode {
		case 1: // DECCKM
			s.appCursor = set
		case 6: // DECOM
			s.originMode = set
			s.moveCursor(0, 0)
		case 7: // DECAWM
			s.autoWrap = set
		case 25: // DECTCEM
			s.cursorVisible = set
		case 47:
			s.setAltScreen(set, false, false)
		case 1047:
			s.setAltScreen(set, set, false)
		case 1048:
			if set {
				s.saveCursor()
			} else {
				s.restoreCursor()
			}
		case 1049:
			s.setAltScreen(set, true, true)
		case 66: // DECNKM
			s.appKeypad = set
		case 2004:
			s.bracketedPaste = set
		case 12, 1000, 1002, 1003, 1004, 1005, 1006, 1015, 2026:
			// Cursor blink, mouse reporting, focus events and synchronized
			// output only matter to a host that answers them.
		default:
			p.unsupported()
		}
	}
}

func (p *Parser) handleSGR() {
	s := p.screen
	if len(p.params) == 0 {
		s.pen = DefaultStyle
		return
	}

	for i := 0; i < len(p.params); i++ {
		switch n := p.params[i]; {
		case n == 0:
			s.pen = DefaultStyle
		case n == 1:
			s.pen.Attrs |= AttrBold
		case n == 2:
			s.pen.Attrs |= AttrDim
		case n == 3:
			s.pen.Attrs |= AttrItalic
		case n == 4 || n == 21:
			s.pen.Attrs |= AttrUnderline
		case n == 5 || n == 6:
			s.pen.Attrs |= AttrBlink
		case n == 7:
			s.pen.Attrs |= AttrInverse
		case n == 8:
			s.pen.Attrs |= AttrHidden
		case n == 9:
			s.pen.Attrs |= AttrStrike
		case n == 22:
			s.pen.Attrs &^= AttrBold | AttrDim
		case n == 23:
			s.pen.Attrs &^= AttrItalic
		case n == 24:
			s.pen.Attrs &^= AttrUnderline
		case n == 25:
			s.pen.Attrs &^= AttrBlink
		case n == 27:
			s.pen.Attrs &^= AttrInverse
		case n == 28:
			s.pen.Attrs &^= AttrHidden
		case n == 29:
			s.pen.Attrs &^= AttrStrike
		case n >= 30 && n <= 37:
			s.pen.Fg = IndexedColor(n - 30)
		case n == 38:
			var c Color
			var ok bool
			c, i, ok = p.extendedColor(i)
			if ok {
				s.pen.Fg = c
			}
		case n == 39:
			s.pen.Fg = DefaultColor
		case n >= 40 && n <= 47:
			s.pen.Bg = IndexedColor(n - 40)
		case n == 48:
			var c Color
			var ok bool
			c, i, ok = p.extendedColor(i)
			if ok {
				s.pen.Bg = c
			}
		case n == 49:
			s.pen.Bg = DefaultColor
		case n == 58: // underline color: parsed and dropped
			_, i, _ = p.extendedColor(i)
		case n >= 90 && n <= 97:
			s.pen.Fg = IndexedColor(n - 90 + 8)
		case n >= 100 && n <= 107:
			s.pen.Bg = IndexedColor(n - 100 + 8)
		}
	}
}

// extendedColor decodes "5;n" or "2;r;g;b" after a 38/48/58 at index i. It
// returns the color, the index of the last parameter consumed and whether the
// form was valid. An invalid form consumes the rest of the sequence.
func (p *Parser) extendedColor(i int) (Color, int, bool) {
	if i+1 >= len(p.params) {
		p.screen.countError()
		return Color{}, i, false
	}
	switch p.params[i+1] {
	case 5:
		if i+2 < len(p.params) {
			n := p.params[i+2]
			if n > 255 {
				p.screen.countError()
				return Color{}, i + 2, false
			}
			return IndexedColor(n), i + 2, true
		}
	case 2:
		if i+4 < len(p.params) {
			return RGBColor(
				clampColorValue(p.params[i+2]),
				clampColorValue(p.params[i+3]),
				clampColorValue(p.params[i+4]),
			), i + 4, true
		}
	}
	p.screen.countError()
	return Color{}, len(p.params) - 1, false
}

func (p *Parser) handleOSC() {
	data := string(p.osc)
	p.osc = p.osc[:0]

	cmdStr, value, _ := strings.Cut(data, ";")
	cmd, err := strconv.Atoi(cmdStr)
	if err != nil {
		p.screen.countError()
		return
	}

	switch cmd {
	case 0:
		p.screen.title = value
		p.screen.iconName = value
	case 1:
		p.screen.iconName = value
	case 2:
		p.screen.title = value
	default:
		// Hyperlinks, palette and cwd reports do not affect the cell grid.
	}
}
