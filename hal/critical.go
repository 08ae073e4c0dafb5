//go:build !baremetal

package hal

import "sync"

// MutexCritical is a critical section for targets where "interrupts" are
// goroutines: a plain mutex.
type MutexCritical struct {
	mu sync.Mutex
}

func (c *MutexCritical) Enter() CriticalState {
	c.mu.Lock()
	return 0
}

func (c *MutexCritical) Exit(CriticalState) {
	c.mu.Unlock()
}
