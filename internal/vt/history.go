package vt

// DefaultScrollback is the number of rows kept when no limit is given.
const DefaultScrollback = 1000

// History is a bounded ring of rows scrolled off the top of the primary screen.
type History struct {
	rows  []*Row
	start int
	count int
}

// NewHistory creates a history holding at most maxRows rows.
// A negative maxRows disables history.
func NewHistory(maxRows int) *History {
	if maxRows < 0 {
		maxRows = 0
	}
	return &History{rows: make([]*Row, maxRows)}
}

// Add appends a copy of row, evicting the oldest row when full.
func (h *History) Add(row *Row) {
	if len(h.rows) == 0 {
		return
	}
	c := row.clone()
	if h.count < len(h.rows) {
		h.rows[(h.start+h.count)%len(h.rows)] = c
		h.count++
		return
	}
	h.rows[h.start] = c
	h.start = (h.start + 1) % len(h.rows)
}

// Row returns a history row (0 = oldest), or nil when out of range.
func (h *History) Row(i int) *Row {
	if i < 0 || i >= h.count {
		return nil
	}
	return h.rows[(h.start+i)%len(h.rows)]
}

// Len returns the number of stored rows.
func (h *History) Len() int {
	return h.count
}

// Cap returns the maximum number of rows.
func (h *History) Cap() int {
	return len(h.rows)
}

// Clear drops every row.
func (h *History) Clear() {
	for i := range h.rows {
		h.rows[i] = nil
	}
	h.start = 0
	h.count = 0
}
