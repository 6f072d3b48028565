package controller

import (
	"sync"
	"time"
)

// ActivityFlash is how long the activity indicator stays on per event
const ActivityFlash = 100 * time.Millisecond

// activity drives the activity indicator. Each pulse switches it on and
// schedules it off; overlapping pulses extend the flash.
type activity struct {
	notifier Notifier
	flash    time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func (a *activity) pulse() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil && a.timer.Stop() {
		a.timer.Reset(a.flash)
		return
	}
	a.notifier.SetActivity(true)
	a.timer = time.AfterFunc(a.flash, func() {
		a.notifier.SetActivity(false)
	})
}

func (a *activity) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil && a.timer.Stop() {
		a.notifier.SetActivity(false)
	}
}
