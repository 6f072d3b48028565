package link

import (
	"sync"
	"sync/atomic"
)

type entry struct {
	listener Listener
	removed  atomic.Bool
}

// registry is an ordered, copy-on-write list of listeners. Dispatch works
// on a snapshot so additions never disturb an iteration in progress, and
// each entry is checked right before its turn so removals take effect
// immediately.
type registry struct {
	mu      sync.Mutex
	entries []*entry
}

func (r *registry) add(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]*entry, len(r.entries), len(r.entries)+1)
	copy(next, r.entries)
	r.entries = append(next, &entry{listener: l})
}

// remove drops the first registration of l. It reports whether l was found.
func (r *registry) remove(l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.listener != l {
			continue
		}
		e.removed.Store(true)

		next := make([]*entry, 0, len(r.entries)-1)
		next = append(next, r.entries[:i]...)
		r.entries = append(next, r.entries[i+1:]...)
		return true
	}
	return false
}

func (r *registry) snapshot() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *registry) dispatch(ev Event) {
	for _, e := range r.snapshot() {
		if e.removed.Load() {
			continue
		}
		e.listener.OnNotify(ev)
	}
}
