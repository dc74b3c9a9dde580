package grid

// History is a fixed-capacity ring buffer of placements. Once full, each
// append evicts the oldest entry.
type History struct {
	entries []Placement
	head    int
	count   int
}

// NewHistory creates a history holding at most capacity placements.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		entries: make([]Placement, capacity),
	}
}

// Cap returns the maximum number of retained placements.
func (h *History) Cap() int {
	return len(h.entries)
}

// Len returns the number of retained placements.
func (h *History) Len() int {
	return h.count
}

// Add appends a placement to the history.
func (h *History) Add(p Placement) {
	n := len(h.entries)
	h.entries[h.head] = p
	h.head = (h.head + 1) % n
	if h.count < n {
		h.count++
	}
}

// Reset drops every entry.
func (h *History) Reset() {
	for i := range h.entries {
		h.entries[i] = Placement{}
	}
	h.head = 0
	h.count = 0
}

// All returns entries in append order (oldest first).
func (h *History) All() []Placement {
	return h.Recent(h.count)
}

// Recent returns at most n of the newest entries, oldest first.
func (h *History) Recent(n int) []Placement {
	if n > h.count {
		n = h.count
	}
	if n <= 0 {
		return []Placement{}
	}
	size := len(h.entries)
	result := make([]Placement, n)
	for i := 0; i < n; i++ {
		idx := (h.head - n + i + size) % size
		result[i] = h.entries[idx]
	}
	return result
}
