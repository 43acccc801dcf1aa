package traffic

import (
	"sync"
	"time"
)

// Window keeps sliding windows of page outcome timestamps. It backs the
// degraded check in /health: upstream failures against answered lookups.
type Window struct {
	mu           sync.Mutex
	span         time.Duration
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
}

// NewWindow returns a Window that retains outcomes for span.
func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = time.Minute
	}
	return &Window{span: span, now: time.Now}
}

// Span returns the window length.
func (w *Window) Span() time.Duration {
	return w.span
}

// RecordSuccess records a lookup the upstream answered, including "not found".
func (w *Window) RecordSuccess() {
	w.record(&w.successTimes)
}

// RecordError records a lookup that failed on the upstream side.
func (w *Window) RecordError() {
	w.record(&w.errorTimes)
}

// RecordDenied records an inbound rate-limit denial (429).
func (w *Window) RecordDenied() {
	w.record(&w.deniedTimes)
}

func (w *Window) record(slice *[]time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	*slice = append(*slice, now)
	w.pruneLocked(now)
}

// RequestCount returns the number of outcomes (success + error + denied) within the window.
func (w *Window) RequestCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	return len(w.successTimes) + len(w.errorTimes) + len(w.deniedTimes)
}

// DenialCount returns the number of denials within the window.
func (w *Window) DenialCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	return len(w.deniedTimes)
}

// ErrorRate returns (errorCount, totalCount) within the window.
// totalCount includes successes and errors only; denials are excluded.
func (w *Window) ErrorRate() (errors, total int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	return len(w.errorTimes), len(w.errorTimes) + len(w.successTimes)
}

// Degraded reports whether the error share within the window is at least pct percent.
// An empty window is never degraded.
func (w *Window) Degraded(pct int) bool {
	errs, total := w.ErrorRate()
	if total == 0 || pct <= 0 {
		return false
	}
	return errs*100 >= pct*total
}

// Reset clears all recorded outcomes.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.successTimes = nil
	w.errorTimes = nil
	w.deniedTimes = nil
}

// pruneLocked drops timestamps that fell out of the window. Timestamps are
// appended in order, so a prefix scan is enough. Must be called with mu held.
func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.span)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&w.successTimes)
	prune(&w.errorTimes)
	prune(&w.deniedTimes)
}
