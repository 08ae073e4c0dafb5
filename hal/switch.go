package hal

import (
	"errors"
	"runtime"
	"sync"
)

// GoroutineSwitcher runs every task context on its own goroutine and passes a
// single wake token between them, so exactly one context makes progress at a
// time. It is the context-switch back-end for hosts and for TinyGo targets
// without a native port.
type GoroutineSwitcher struct {
	mu   sync.Mutex
	ctxs map[ContextID]*goContext
}

type goContext struct {
	wake chan struct{}
	done chan struct{}
}

// NewGoroutineSwitcher returns an empty switcher.
func NewGoroutineSwitcher() *GoroutineSwitcher {
	return &GoroutineSwitcher{ctxs: make(map[ContextID]*goContext)}
}

var (
	errNoContext     = errors.New("context id 0 is reserved")
	errContextExists = errors.New("context already prepared")
)

func (s *GoroutineSwitcher) Prepare(id ContextID, stack []uint32, entry func()) (int, error) {
	if id == NoContext {
		return 0, errNoContext
	}
	c := &goContext{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if _, ok := s.ctxs[id]; ok {
		s.mu.Unlock()
		return 0, errContextExists
	}
	s.ctxs[id] = c
	s.mu.Unlock()

	go func() {
		if !c.park() {
			return
		}
		entry()
	}()

	// The goroutine keeps its own stack; the task stack stays untouched.
	sp := len(stack) - 1
	if sp < 0 {
		sp = 0
	}
	return sp, nil
}

func (s *GoroutineSwitcher) Switch(from, to ContextID) {
	if to != NoContext && to != from {
		if c := s.get(to); c != nil {
			select {
			case c.wake <- struct{}{}:
			default:
			}
		}
	}
	if from == NoContext || from == to {
		return
	}
	if c := s.get(from); c != nil && !c.park() {
		runtime.Goexit()
	}
}

func (s *GoroutineSwitcher) Release(id ContextID) {
	s.mu.Lock()
	c := s.ctxs[id]
	delete(s.ctxs, id)
	s.mu.Unlock()
	if c != nil {
		close(c.done)
	}
}

// Len returns the number of live contexts.
func (s *GoroutineSwitcher) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ctxs)
}

func (s *GoroutineSwitcher) get(id ContextID) *goContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxs[id]
}

// park blocks until the context is switched in. It returns false when the
// context was released instead.
func (c *goContext) park() bool {
	select {
	case <-c.wake:
		return true
	case <-c.done:
		return false
	}
}
