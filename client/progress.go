// Package client provides the CLI-facing half of a computesrv client:
// a ProgressSink that mirrors a submitted task's range/value updates
// and a blocking result wait, grounded on the original desktop client's
// PersistentProgressDialog (non-closable until the task truly ends,
// label switches to "Canceling..." once a cancel is in flight).
package client

import (
	"fmt"
	"io"
	"sync"
)

// ProgressSink receives the progress events of exactly one in-flight
// task, in the same three-event shape the wire protocol uses
// (ProgressRange once, then any number of ProgressValue, then Done).
type ProgressSink interface {
	SetRange(minimum, maximum int32)
	SetValue(value int32)
	Cancelling()
	Done(result interface{}, err error)
}

// BarSink renders progress as a single redrawn line, the CLI analogue
// of PersistentProgressDialog: auto-closing, non-interactive until
// Done, relabeled while a cancel is pending.
type BarSink struct {
	out io.Writer

	mu       sync.Mutex
	minimum  int32
	maximum  int32
	value    int32
	label    string
	finished bool
	doneCh   chan struct{}
}

// NewBarSink builds a sink that writes redrawn progress lines to out.
func NewBarSink(out io.Writer) *BarSink {
	return &BarSink{out: out, label: "awaiting task completion...", doneCh: make(chan struct{})}
}

// SetRange records the task's total unit count and redraws.
func (b *BarSink) SetRange(minimum, maximum int32) {
	b.mu.Lock()
	b.minimum, b.maximum = minimum, maximum
	b.mu.Unlock()
	b.redraw()
}

// SetValue records progress and redraws.
func (b *BarSink) SetValue(value int32) {
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
	b.redraw()
}

// Cancelling relabels the bar once a cancel request is in flight, the
// same transition PersistentProgressDialog makes on its canceled signal
// before the actual cancellation completes.
func (b *BarSink) Cancelling() {
	b.mu.Lock()
	b.label = "canceling..."
	b.mu.Unlock()
	b.redraw()
}

// Done marks the task finished; Wait unblocks.
func (b *BarSink) Done(result interface{}, err error) {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return
	}
	b.finished = true
	b.mu.Unlock()
	close(b.doneCh)
	fmt.Fprintln(b.out)
}

// Wait blocks until Done has been called.
func (b *BarSink) Wait() { <-b.doneCh }

func (b *BarSink) redraw() {
	b.mu.Lock()
	minimum, maximum, value, label := b.minimum, b.maximum, b.value, b.label
	b.mu.Unlock()

	span := maximum - minimum
	pct := 0
	if span > 0 {
		pct = int(float64(value-minimum) / float64(span) * 100)
	}
	fmt.Fprintf(b.out, "\r[%-20s] %3d%% %s", bar(pct), pct, label)
}

func bar(pct int) string {
	filled := pct * 20 / 100
	if filled > 20 {
		filled = 20
	}
	if filled < 0 {
		filled = 0
	}
	b := make([]byte, 20)
	for i := range b {
		if i < filled {
			b[i] = '='
		} else {
			b[i] = ' '
		}
	}
	return string(b)
}
