package mcquad

import (
	"sync"
	"time"
)

// A Timer fires a pure side effect (printing, saving a snapshot) at a
// fixed wall-clock period. Engines poll their timers every pollInterval
// inner steps; firing never mutates integration state.
type Timer struct {
	// Period between firings.
	Period time.Duration
	// Fire receives the block configuration current at the poll point.
	Fire func(c *Config)

	mu   sync.Mutex
	last time.Time
}

// NewTimer returns a timer that fires fn at the given period, starting
// one period from now.
func NewTimer(period time.Duration, fn func(c *Config)) *Timer {
	return &Timer{Period: period, Fire: fn, last: time.Now()}
}

// Check fires the timer if its period has elapsed.
func (t *Timer) Check(c *Config) {
	if t.Period <= 0 || t.Fire == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now := time.Now(); now.Sub(t.last) >= t.Period {
		t.Fire(c)
		t.last = now
	}
}
