package game

import "time"

// Scheduler runs f once after d and returns a function that cancels it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

// AfterFunc is the production Scheduler.
func AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// TurnTimer is the per-room countdown. Only the room goroutine calls its
// methods; the fire callback runs elsewhere and must do nothing but hand the
// generation back to the room, which checks Live before acting on it.
type TurnTimer struct {
	d        time.Duration
	schedule Scheduler
	fire     func(gen uint64)

	gen  uint64
	stop func() bool
}

func NewTurnTimer(d time.Duration, schedule Scheduler, fire func(gen uint64)) *TurnTimer {
	if schedule == nil {
		schedule = AfterFunc
	}
	return &TurnTimer{d: d, schedule: schedule, fire: fire}
}

// Arm cancels any live countdown and starts a new one. A zero duration
// disables the timer.
func (t *TurnTimer) Arm() {
	t.Cancel()
	if t.d <= 0 {
		return
	}
	t.gen++
	gen := t.gen
	t.stop = t.schedule(t.d, func() { t.fire(gen) })
}

// Cancel stops the live countdown, if any. Safe to call repeatedly.
func (t *TurnTimer) Cancel() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

func (t *TurnTimer) Armed() bool { return t.stop != nil }

// Live reports whether gen belongs to the countdown currently armed. A
// callback that raced with Cancel or a later Arm carries a stale gen.
func (t *TurnTimer) Live(gen uint64) bool {
	return t.stop != nil && gen == t.gen
}

// Expired marks the live countdown as spent once its fire has been handled.
func (t *TurnTimer) Expired() {
	t.stop = nil
}
