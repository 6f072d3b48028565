package link

import (
	"time"

	"seriallink/serial"
)

// Event is delivered to listeners for every non-empty notification of an
// open session. Events are values; listeners may keep them.
type Event struct {
	Source     *Session
	SessionID  string
	Parameters Parameters
	Message    string
	Kind       serial.EventType
	Time       time.Time
}

// Listener receives session events. OnNotify runs on the session's
// dispatch goroutine, one event at a time, and must not call Close on the
// session that delivered the event. Implementations must be comparable
// (usually a pointer) so they can be removed again.
type Listener interface {
	OnNotify(ev Event)
}
