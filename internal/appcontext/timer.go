package appcontext

import (
	"fmt"
	"time"
)

// Timer measures wall-clock time since construction or the last Restart.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns seconds since the timer started.
func (t *Timer) Elapsed() float64 {
	return time.Since(t.start).Seconds()
}

func (t *Timer) Restart() {
	t.start = time.Now()
}

// Display renders the elapsed time as e.g. "1.2s".
func (t *Timer) Display() string {
	return fmt.Sprintf("%.1fs", t.Elapsed())
}
