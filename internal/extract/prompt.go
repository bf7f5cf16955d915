package extract

import (
	"strings"

	"github.com/dshills/termlink/internal/vt"
)

// detectPrompt guesses the shell prompt: the text left of the cursor on the
// cursor row. Blank candidates and banner noise are rejected. This is a
// heuristic; a program that parks the cursor mid-line will produce a false
// positive.
func (e *Extractor) detectPrompt(row *vt.Row, col int) string {
	if row == nil || col <= 0 {
		return ""
	}
	var b strings.Builder
	for x := 0; x < col && x < len(row.Cells); x++ {
		c := row.Cells[x]
		if c.IsContinuation() {
			continue
		}
		b.WriteString(c.Content)
	}
	candidate := strings.TrimRight(b.String(), " ")
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	for _, n := range e.Noise {
		if n != "" && strings.HasPrefix(trimmed, n) {
			return ""
		}
	}
	return candidate
}
