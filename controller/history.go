package controller

import "sync"

// DefaultHistorySize is the number of console entries kept when none is configured
const DefaultHistorySize = 1000

// History is a bounded in-memory console log. Once full, the oldest entry
// is overwritten.
type History struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewHistory creates a history holding up to size entries
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{entries: make([]Entry, size)}
}

// Add appends e
func (h *History) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// Entries returns the stored entries, oldest first
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]Entry(nil), h.entries[:h.next]...)
	}
	out := make([]Entry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	return append(out, h.entries[:h.next]...)
}

// Len returns the number of stored entries
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// Clear drops every entry
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.entries)
	h.next = 0
	h.full = false
}
