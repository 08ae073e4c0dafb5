//go:build baremetal

package hal

import "runtime/interrupt"

// InterruptCritical masks interrupts on the current core.
type InterruptCritical struct{}

func (InterruptCritical) Enter() CriticalState {
	return CriticalState(interrupt.Disable())
}

func (InterruptCritical) Exit(s CriticalState) {
	interrupt.Restore(interrupt.State(s))
}
