package dialog

import (
	"sync"
	"time"
)

// DefaultSafetyMargin is the slice of the execution budget reserved for
// rendering and flushing the fallback reply before the host kills us.
const DefaultSafetyMargin = 500 * time.Millisecond

// Watchdog schedules a single delayed fallback-reply emission tied to the
// remaining execution budget. Exactly one watchdog exists per turn.
type Watchdog struct {
	mu    sync.Mutex
	timer *time.Timer
}

func NewWatchdog() *Watchdog {
	return &Watchdog{}
}

// Arm schedules onExpire once after max(budget-margin, 0). A second Arm on
// the same watchdog is ignored.
func (w *Watchdog) Arm(budget, margin time.Duration, onExpire func()) {
	delay := budget - margin
	if delay < 0 {
		delay = 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(delay, onExpire)
}

// Disarm cancels the scheduled callback. Idempotent: safe when never armed
// and safe after the timer already fired.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
