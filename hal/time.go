package hal

import (
	"math"
	"sync"
	"time"
)

// MonotonicClock reads time.Now relative to its creation.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a clock that starts at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() uint64 {
	return uint64(time.Since(c.start))
}

// OneShotTimer emulates a one-shot hardware timer with time.AfterFunc. The
// handler runs on the runtime timer goroutine, which plays the interrupt.
type OneShotTimer struct {
	mu       sync.Mutex
	t        *time.Timer
	gen      uint64
	armed    bool
	deadline time.Time
	handler  func()
}

func (t *OneShotTimer) SetHandler(fn func()) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

func (t *OneShotTimer) Set(d uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.armed = true
	dur := time.Duration(math.MaxInt64)
	if d < math.MaxInt64 {
		dur = time.Duration(d)
	}
	t.deadline = time.Now().Add(dur)
	t.t = time.AfterFunc(dur, func() { t.fire(gen) })
}

func (t *OneShotTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h()
	}
}

func (t *OneShotTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.armed = false
	if t.t != nil {
		t.t.Stop()
	}
}

func (t *OneShotTimer) Remaining() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return uint64(d)
}
