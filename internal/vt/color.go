package vt

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is a cell color. Default means "inherit the terminal default",
// which a renderer must not confuse with black.
type Color struct {
	R, G, B uint8
	Index   int  // -1 for RGB, 0-255 for indexed
	Default bool // use terminal default fg/bg
}

// DefaultColor is the terminal default color for either plane.
var DefaultColor = Color{Default: true}

// Standard ANSI colors (indices 0-15).
var (
	ColorBlack         = Color{Index: 0, R: 0, G: 0, B: 0}
	ColorRed           = Color{Index: 1, R: 205, G: 0, B: 0}
	ColorGreen         = Color{Index: 2, R: 0, G: 205, B: 0}
	ColorYellow        = Color{Index: 3, R: 205, G: 205, B: 0}
	ColorBlue          = Color{Index: 4, R: 0, G: 0, B: 238}
	ColorMagenta       = Color{Index: 5, R: 205, G: 0, B: 205}
	ColorCyan          = Color{Index: 6, R: 0, G: 205, B: 205}
	ColorWhite         = Color{Index: 7, R: 229, G: 229, B: 229}
	ColorBrightBlack   = Color{Index: 8, R: 127, G: 127, B: 127}
	ColorBrightRed     = Color{Index: 9, R: 255, G: 0, B: 0}
	ColorBrightGreen   = Color{Index: 10, R: 0, G: 255, B: 0}
	ColorBrightYellow  = Color{Index: 11, R: 255, G: 255, B: 0}
	ColorBrightBlue    = Color{Index: 12, R: 92, G: 92, B: 255}
	ColorBrightMagenta = Color{Index: 13, R: 255, G: 0, B: 255}
	ColorBrightCyan    = Color{Index: 14, R: 0, G: 255, B: 255}
	ColorBrightWhite   = Color{Index: 15, R: 255, G: 255, B: 255}
)

var palette16 = [16]Color{
	ColorBlack, ColorRed, ColorGreen, ColorYellow,
	ColorBlue, ColorMagenta, ColorCyan, ColorWhite,
	ColorBrightBlack, ColorBrightRed, ColorBrightGreen, ColorBrightYellow,
	ColorBrightBlue, ColorBrightMagenta, ColorBrightCyan, ColorBrightWhite,
}

// IndexedColor resolves a 256-color palette index.
//
//	0-7     standard colors
//	8-15    bright variants
//	16-231  6x6x6 cube, each axis stepping by 51
//	232-255 24-step grayscale ramp
//
// Out-of-range indices resolve to the default color.
func IndexedColor(n int) Color {
	switch {
	case n < 0 || n > 255:
		return DefaultColor
	case n < 16:
		return palette16[n]
	case n < 232:
		i := n - 16
		return Color{
			R:     uint8(51 * (i / 36)),
			G:     uint8(51 * ((i / 6) % 6)),
			B:     uint8(51 * (i % 6)),
			Index: n,
		}
	default:
		gray := uint8((n-232)*10 + 8)
		return Color{R: gray, G: gray, B: gray, Index: n}
	}
}

// RGBColor creates a 24-bit color.
func RGBColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Index: -1}
}

// IsRGB reports whether the color was set with a 24-bit SGR sequence.
func (c Color) IsRGB() bool {
	return !c.Default && c.Index < 0
}

// Hex returns "#rrggbb", or "" for the default color.
func (c Color) Hex() string {
	if c.Default {
		return ""
	}
	return c.colorful().Hex()
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}

func clampColorValue(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
