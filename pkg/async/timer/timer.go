// Package timer implements the restartable one-shot deadline timer spec.md
// §4.2 requires: Start begins or restarts the deadline, the handler fires
// with Success on expiry or Canceled on Stop/re-Start, and the handler
// always runs on the timer's owning strand.
//
// Grounded on the teacher's time.AfterFunc usage in the historical
// Connmgr.failed backoff (_pkg.dev/connmgr/connmgr.go), generalized to the
// start/stop/fire contract spec.md requires.
package timer

import (
	"sync"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
)

// Code is the outcome delivered to a Timer's handler.
type Code int

const (
	// Success means the deadline elapsed without being stopped or restarted.
	Success Code = iota
	// Canceled means Stop was called, or Start was called again before
	// the previous deadline elapsed.
	Canceled
)

// Handler is invoked, on the owning strand, with the timer's outcome.
type Handler func(Code)

// Timer is a non-thread-safe (except via its own internal locking for the
// underlying time.Timer bookkeeping), restartable one-shot deadline. All
// Start/Stop calls should happen on the owning Strand; the fired handler
// always does.
type Timer struct {
	strand  *strand.Strand
	dur     time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	handler Handler
}

// New creates a Timer bound to st with a default duration used whenever
// Start is called without one.
func New(st *strand.Strand, defaultDuration time.Duration) *Timer {
	return &Timer{strand: st, dur: defaultDuration}
}

// Start begins (or restarts) the deadline. A start in progress is always
// canceled (delivering Canceled to its own, now-stale, handler) before the
// new one begins; at most one handler per Start ever fires, and it fires
// at most once.
func (t *Timer) Start(handler Handler, duration ...time.Duration) {
	d := t.dur
	if len(duration) > 0 {
		d = duration[0]
	}

	t.mu.Lock()
	var stale Handler
	if t.timer != nil {
		t.timer.Stop()
		stale = t.handler
	}
	t.gen++
	gen := t.gen
	t.handler = handler
	t.timer = time.AfterFunc(d, func() { t.fire(gen, Success) })
	t.mu.Unlock()

	if stale != nil {
		t.strand.Post(func() { stale(Canceled) })
	}
}

// Stop cancels any pending deadline, delivering Canceled to its handler.
// Stop is idempotent: calling it with nothing pending is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.mu.Unlock()
	t.fire(gen, Canceled)
}

func (t *Timer) fire(gen uint64, code Code) {
	t.mu.Lock()
	if gen != t.gen {
		// superseded by a later Start/Stop; this firing is stale.
		t.mu.Unlock()
		return
	}
	h := t.handler
	t.handler = nil
	t.mu.Unlock()

	if h == nil {
		return
	}
	t.strand.Post(func() { h(code) })
}
