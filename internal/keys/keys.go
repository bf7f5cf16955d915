// Package keys encodes keyboard input as the byte sequences a shell expects.
//
// Encodings follow xterm: cursor keys honor DECCKM, function keys use the
// SS3 form for F1-F4 and CSI ~ above that, and Alt prefixes ESC.
package keys

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/termlink/internal/vt"
)

const esc = "\x1b"

// Bracketed paste delimiters.
const (
	PasteStart = "\x1b[200~"
	PasteEnd   = "\x1b[201~"
)

var tildeKeys = map[tcell.Key]int{
	tcell.KeyInsert: 2,
	tcell.KeyDelete: 3,
	tcell.KeyPgUp:   5,
	tcell.KeyPgDn:   6,
	tcell.KeyF5:     15,
	tcell.KeyF6:     17,
	tcell.KeyF7:     18,
	tcell.KeyF8:     19,
	tcell.KeyF9:     20,
	tcell.KeyF10:    21,
	tcell.KeyF11:    23,
	tcell.KeyF12:    24,
}

var cursorKeys = map[tcell.Key]byte{
	tcell.KeyUp:    'A',
	tcell.KeyDown:  'B',
	tcell.KeyRight: 'C',
	tcell.KeyLeft:  'D',
	tcell.KeyHome:  'H',
	tcell.KeyEnd:   'F',
}

var ss3Keys = map[tcell.Key]byte{
	tcell.KeyF1: 'P',
	tcell.KeyF2: 'Q',
	tcell.KeyF3: 'R',
	tcell.KeyF4: 'S',
}

// Encode returns the bytes for a key event, or nil when the key has no
// terminal encoding.
func Encode(ev *tcell.EventKey, modes vt.Modes) []byte {
	if ev == nil {
		return nil
	}
	k, mod := ev.Key(), ev.Modifiers()

	switch k {
	case tcell.KeyRune:
		return encodeRune(ev.Rune(), mod)
	case tcell.KeyEnter:
		return withAlt("\r", mod)
	case tcell.KeyTab:
		return withAlt("\t", mod)
	case tcell.KeyBacktab:
		return []byte(esc + "[Z")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return withAlt("\x7f", mod)
	case tcell.KeyEscape:
		return []byte(esc)
	}

	if final, ok := cursorKeys[k]; ok {
		return cursorSequence(final, mod, modes.AppCursor)
	}
	if final, ok := ss3Keys[k]; ok {
		if m := modParam(mod); m > 1 {
			return []byte(esc + "[1;" + strconv.Itoa(m) + string(final))
		}
		return []byte(esc + "O" + string(final))
	}
	if n, ok := tildeKeys[k]; ok {
		seq := esc + "[" + strconv.Itoa(n)
		if m := modParam(mod); m > 1 {
			seq += ";" + strconv.Itoa(m)
		}
		return []byte(seq + "~")
	}

	if b, ok := controlByte(k); ok {
		return withAlt(string(rune(b)), mod&^tcell.ModCtrl)
	}
	return nil
}

// controlByte maps tcell's control keys to their C0 byte. Older tcell
// releases number KeyCtrlA..KeyCtrlZ as the C0 codes themselves; newer
// ones keep them in a separate range, so both are accepted.
func controlByte(k tcell.Key) (byte, bool) {
	switch {
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		return byte(k-tcell.KeyCtrlA) + 1, true
	case k == tcell.KeyCtrlSpace:
		return 0, true
	case k == tcell.KeyCtrlLeftSq:
		return 0x1b, true
	case k == tcell.KeyCtrlBackslash:
		return 0x1c, true
	case k == tcell.KeyCtrlRightSq:
		return 0x1d, true
	case k == tcell.KeyCtrlCarat:
		return 0x1e, true
	case k == tcell.KeyCtrlUnderscore:
		return 0x1f, true
	case k >= 0 && k < 0x20:
		return byte(k), true
	}
	return 0, false
}

func encodeRune(r rune, mod tcell.ModMask) []byte {
	if mod&tcell.ModCtrl != 0 {
		switch {
		case r >= 'a' && r <= 'z':
			return withAlt(string(rune(r-'a'+1)), mod)
		case r >= '@' && r <= '_':
			return withAlt(string(rune(r-'@')), mod)
		case r == ' ':
			return withAlt("\x00", mod)
		case r == '?':
			return withAlt("\x7f", mod)
		}
	}
	if !utf8.ValidRune(r) {
		return nil
	}
	return withAlt(string(r), mod)
}

func withAlt(s string, mod tcell.ModMask) []byte {
	if mod&tcell.ModAlt != 0 {
		return []byte(esc + s)
	}
	return []byte(s)
}

// modParam is the xterm modifier parameter: 1 + shift + 2*alt + 4*ctrl.
func modParam(mod tcell.ModMask) int {
	m := 1
	if mod&tcell.ModShift != 0 {
		m++
	}
	if mod&tcell.ModAlt != 0 {
		m += 2
	}
	if mod&tcell.ModCtrl != 0 {
		m += 4
	}
	return m
}

func cursorSequence(final byte, mod tcell.ModMask, app bool) []byte {
	if m := modParam(mod); m > 1 {
		return []byte(esc + "[1;" + strconv.Itoa(m) + string(final))
	}
	if app {
		return []byte(esc + "O" + string(final))
	}
	return []byte(esc + "[" + string(final))
}

// Paste encodes pasted text. Line feeds become carriage returns as a
// terminal would send them. With bracketed paste on, the text is wrapped in
// the paste delimiters and any embedded end delimiter is removed so the
// payload cannot terminate the paste early.
func Paste(text string, bracketed bool) []byte {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	if !bracketed {
		return []byte(text)
	}
	text = strings.ReplaceAll(text, PasteEnd, "")
	return []byte(PasteStart + text + PasteEnd)
}

// Line encodes a command line followed by Enter.
func Line(cmd string) []byte {
	return []byte(strings.TrimRight(cmd, "\r\n") + "\r")
}
