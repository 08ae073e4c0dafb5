package hal

import "sync"

// Sim is virtual clock and timer hardware. Time moves only when Step or
// Advance is called, and the timer handler runs on the caller's goroutine.
type Sim struct {
	mu       sync.Mutex
	now      uint64
	deadline uint64
	armed    bool
	handler  func()

	sets  uint64
	stops uint64
}

// NewSim returns simulated hardware at time zero.
func NewSim() *Sim { return &Sim{} }

func (s *Sim) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Sim) SetHandler(fn func()) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *Sim) Set(d uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = s.now + d
	s.armed = true
	s.sets++
}

func (s *Sim) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	s.stops++
}

func (s *Sim) Remaining() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed || s.deadline <= s.now {
		return 0
	}
	return s.deadline - s.now
}

// Deadline returns the absolute armed deadline.
func (s *Sim) Deadline() (at uint64, armed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline, s.armed
}

// Programs returns how many times the timer was set and stopped.
func (s *Sim) Programs() (sets, stops uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets, s.stops
}

// Step moves time forward to the armed deadline if it is not later than
// limit and fires the handler, reporting true. Otherwise time moves to limit
// and Step reports false.
func (s *Sim) Step(limit uint64) bool {
	s.mu.Lock()
	if s.armed && s.deadline <= limit {
		if s.deadline > s.now {
			s.now = s.deadline
		}
		s.armed = false
		h := s.handler
		s.mu.Unlock()
		if h != nil {
			h()
		}
		return true
	}
	if limit > s.now {
		s.now = limit
	}
	s.mu.Unlock()
	return false
}

// Advance moves time forward by d, firing every deadline on the way.
func (s *Sim) Advance(d uint64) {
	target := s.Now() + d
	for s.Step(target) {
	}
}
