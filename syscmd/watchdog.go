package syscmd

import (
	"os"
	"sync"
	"time"
)

// Reasons recorded when a watchdog destroys its process.
const (
	reasonTimeout = "timeout"
	reasonStop    = "stop requested"
	reasonContext = "context done"
)

// watchdog destroys one process, either when its timeout elapses or on
// request. A stop requested before the process is attached is remembered and
// applied as soon as the process exists.
type watchdog struct {
	timeout time.Duration

	mu        sync.Mutex
	proc      *os.Process
	timer     *time.Timer
	destroyed bool
	reason    string
	released  bool
}

func newWatchdog(timeout time.Duration) *watchdog {
	return &watchdog{timeout: timeout}
}

// attach binds the started process and arms the timer for finite timeouts.
func (w *watchdog) attach(p *os.Process) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.proc = p
	if w.destroyed {
		_ = killProcessTree(p)
		return
	}
	if w.timeout > 0 {
		w.timer = time.AfterFunc(w.timeout, func() { w.destroy(reasonTimeout) })
	}
}

// destroy kills the process. Only the first call has an effect.
func (w *watchdog) destroy(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.destroyed || w.released {
		return
	}
	w.destroyed = true
	w.reason = reason
	if w.proc != nil {
		_ = killProcessTree(w.proc)
	}
}

// release disarms the watchdog once the process has been reaped.
func (w *watchdog) release() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.released = true
	w.proc = nil
	if w.timer != nil {
		w.timer.Stop()
	}
}

// killed reports whether destruction was requested, and why.
func (w *watchdog) killed() (bool, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed, w.reason
}

// watchdogSlot holds the watchdog of the execution currently in flight.
type watchdogSlot struct {
	mu      sync.Mutex
	current *watchdog
}

func (s *watchdogSlot) publish(w *watchdog) {
	s.mu.Lock()
	s.current = w
	s.mu.Unlock()
}

// clear empties the slot if it still holds w.
func (s *watchdogSlot) clear(w *watchdog) {
	s.mu.Lock()
	if s.current == w {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *watchdogSlot) get() *watchdog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
