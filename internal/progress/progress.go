// Package progress renders console progress for long-running scans: a
// throttled single-line display with counts, percentage, rate, and elapsed
// time on completion.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// redrawInterval throttles terminal updates so per-variant callbacks stay
// cheap.
const redrawInterval = 100 * time.Millisecond

// Tracker displays progress for one named activity. It is driven from a
// single goroutine via Update and finished with Done.
type Tracker struct {
	w    io.Writer
	name string

	started  time.Time
	lastDraw time.Time
	done     uint32
	total    uint32
}

// New starts tracking an activity. Pass the stream progress should render
// to; the data output stream must be a different one.
func New(w io.Writer, name string) *Tracker {
	t := &Tracker{
		w:       w,
		name:    name,
		started: time.Now(),
	}
	t.draw()

	return t
}

// Update records progress and redraws if enough time has passed. It has the
// signature expected by the library's progress callbacks.
func (t *Tracker) Update(done, total uint32) {
	t.done = done
	t.total = total
	if time.Since(t.lastDraw) < redrawInterval {
		return
	}
	t.draw()
}

// Done renders the final state and terminates the line.
func (t *Tracker) Done() {
	t.draw()
	fmt.Fprintf(t.w, " (%.1fs)\n", time.Since(t.started).Seconds())
}

func (t *Tracker) draw() {
	t.lastDraw = time.Now()

	elapsed := time.Since(t.started).Seconds()
	rate := float64(0)
	if elapsed > 0 {
		rate = float64(t.done) / elapsed
	}

	if t.total > 0 {
		percent := 100 * float64(t.done) / float64(t.total)
		fmt.Fprintf(t.w, "\r%s: %s %d/%d (%.1f%%, %.0f/s)",
			t.name, bar(percent), t.done, t.total, percent, rate)
		return
	}

	fmt.Fprintf(t.w, "\r%s: %d (%.0f/s)", t.name, t.done, rate)
}

// bar renders a fixed-width progress bar like "[=====>    ]".
func bar(percent float64) string {
	const width = 20
	filled := int(percent / 100 * width)
	if filled > width {
		filled = width
	}

	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			b.WriteByte('=')
		case i == filled && filled < width:
			b.WriteByte('>')
		default:
			b.WriteByte(' ')
		}
	}
	b.WriteByte(']')

	return b.String()
}
