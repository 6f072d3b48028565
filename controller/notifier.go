package controller

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// EntryLevel tells front ends how to render a console entry
type EntryLevel string

const (
	LevelInfo     EntryLevel = "info"
	LevelSent     EntryLevel = "sent"
	LevelReceived EntryLevel = "received"
	LevelError    EntryLevel = "error"
)

// Entry is one console line
type Entry struct {
	Time  time.Time
	Level EntryLevel
	Text  string
}

// Stamp returns the HH:MM:SS prefix shown in front of the entry
func (e Entry) Stamp() string {
	return e.Time.Format("15:04:05")
}

func (e Entry) String() string {
	return e.Stamp() + " " + e.Text
}

// Notifier is the surface a front end exposes to the controller. Methods
// may be called from any goroutine.
type Notifier interface {
	// Console appends a line to the console
	Console(e Entry)

	// ConnectionChanged updates the connection indicator
	ConnectionChanged(connected bool)

	// SetActivity switches the activity indicator
	SetActivity(on bool)

	// Failure reports an error the user must acknowledge
	Failure(title, detail string)
}

// LogNotifier prints console entries and failures to a writer
type LogNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLogNotifier creates a notifier writing to out
func NewLogNotifier(out io.Writer) *LogNotifier {
	return &LogNotifier{out: out}
}

func (n *LogNotifier) Console(e Entry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, e.String())
}

func (n *LogNotifier) ConnectionChanged(bool) {}

func (n *LogNotifier) SetActivity(bool) {}

func (n *LogNotifier) Failure(title, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s: %s\n", title, detail)
}
