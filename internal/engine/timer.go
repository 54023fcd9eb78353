package engine

import (
	"sync"
	"time"

	"interview-engine-service/internal/domain"
)

// CountdownTimer tracks the per-question time budget. It does not schedule
// itself; a driver (Engine.Run in production, tests directly) calls Tick at
// roughly one-second granularity and the timer recomputes remaining time from
// the injected clock, so elapsed time is conserved exactly across pause and
// resume regardless of tick jitter.
type CountdownTimer struct {
	mu       sync.Mutex
	now      func() time.Time
	total    time.Duration
	refStart time.Time
	banked   time.Duration // elapsed run-time accumulated before the last resume
	running  bool
	fired    bool

	onExpire func()

	// The persistence hook fires on a coarse interval to bound write volume,
	// not on every tick.
	onPersist    func(remainingSeconds int)
	persistEvery int
	lastPersist  int
}

// NewCountdownTimer builds a timer on the given clock; nil means time.Now.
func NewCountdownTimer(now func() time.Time) *CountdownTimer {
	if now == nil {
		now = time.Now
	}
	return &CountdownTimer{now: now}
}

// OnExpire registers the expiry callback. It fires exactly once per Start,
// outside the timer lock.
func (t *CountdownTimer) OnExpire(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = fn
}

// OnPersist registers a hook invoked whenever remaining time has dropped by at
// least every seconds since the last invocation.
func (t *CountdownTimer) OnPersist(every int, fn func(remainingSeconds int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persistEvery = every
	t.onPersist = fn
}

// Start arms the countdown for totalSeconds from the current clock instant.
func (t *CountdownTimer) Start(totalSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = time.Duration(totalSeconds) * time.Second
	t.refStart = t.now()
	t.banked = 0
	t.running = true
	t.fired = false
	t.lastPersist = totalSeconds
}

// Pause freezes the countdown, banking the elapsed run-time. Idempotent.
func (t *CountdownTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.banked += t.now().Sub(t.refStart)
	t.running = false
}

// Resume continues a paused countdown from where it left off. Idempotent; a
// no-op after expiry.
func (t *CountdownTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.fired || t.total == 0 {
		return
	}
	t.refStart = t.now()
	t.running = true
}

// Stop disarms the timer without firing expiry. Elapsed run-time stays
// readable afterwards.
func (t *CountdownTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.banked += t.now().Sub(t.refStart)
	}
	t.running = false
	t.fired = true
}

// Tick recomputes remaining time, firing the persistence hook on its coarse
// interval and the expiry callback when the budget is exhausted. Returns the
// remaining whole seconds.
func (t *CountdownTimer) Tick() int {
	t.mu.Lock()
	remaining := t.remainingLocked()

	var persist func(int)
	if t.running && t.onPersist != nil && t.persistEvery > 0 &&
		(t.lastPersist-remaining >= t.persistEvery || remaining == 0) {
		t.lastPersist = remaining
		persist = t.onPersist
	}

	var expire func()
	if t.running && !t.fired && remaining == 0 {
		t.banked += t.now().Sub(t.refStart)
		t.fired = true
		t.running = false
		expire = t.onExpire
	}
	t.mu.Unlock()

	if persist != nil {
		persist(remaining)
	}
	if expire != nil {
		expire()
	}
	return remaining
}

// Remaining returns the remaining whole seconds without firing any hooks.
func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// Elapsed returns the total run-time spent on the current question, excluding
// paused stretches.
func (t *CountdownTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// State snapshots the timer for persistence.
func (t *CountdownTimer) State() domain.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.TimerState{
		RemainingSeconds: t.remainingLocked(),
		TotalSeconds:     int(t.total / time.Second),
		Running:          t.running,
		ReferenceStart:   t.refStart,
	}
}

func (t *CountdownTimer) elapsedLocked() time.Duration {
	elapsed := t.banked
	if t.running {
		elapsed += t.now().Sub(t.refStart)
	}
	return elapsed
}

func (t *CountdownTimer) remainingLocked() int {
	rem := t.total - t.elapsedLocked()
	if rem <= 0 {
		return 0
	}
	// Round up so a countdown shows 1 until the budget is truly exhausted.
	return int((rem + time.Second - 1) / time.Second)
}
