package kernel

import "kestrel/kernel/kerr"

// Stack layout: word 0 and the last word hold StackMagic, everything between
// is prefilled with stackFill so the high-water mark can be measured.

func initStack(s []uint32) {
	for i := range s {
		s[i] = stackFill
	}
	if len(s) > 0 {
		s[0] = StackMagic
		s[len(s)-1] = StackMagic
	}
}

// stackIntact reports whether both canaries survive.
func (t *Task) stackIntact() bool {
	s := t.stack
	return len(s) >= 2 && s[0] == StackMagic && s[len(s)-1] == StackMagic
}

// stackUsed returns the high-water mark in bytes, canaries excluded. The
// stack grows down from the top, so used words are those above the lowest
// untouched fill word.
func (t *Task) stackUsed() int {
	s := t.stack
	if len(s) < 2 {
		return 0
	}
	i := 1
	for i < len(s)-1 && s[i] == stackFill {
		i++
	}
	return (len(s) - 1 - i) * 4
}

// checkStack reports an overflow once per task. Called with the critical
// section held.
func (k *Kernel) checkStack(t *Task) {
	if t.overflow || t.stackIntact() {
		return
	}
	t.overflow = true
	k.raise(Fault{Kind: FaultStackOverflow, Task: t})
}

// CheckStackOverflow verifies t's stack canaries.
func (t *Task) CheckStackOverflow() error {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	if t.overflow || !t.stackIntact() {
		t.overflow = true
		return kerr.StackOverflow
	}
	return nil
}

// StackUsage returns the high-water mark as a percentage of the stack.
func (t *Task) StackUsage() int {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	if len(t.stack) == 0 {
		return 0
	}
	return t.stackUsed() * 100 / (len(t.stack) * 4)
}

// StackFree returns the bytes never touched.
func (t *Task) StackFree() int {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	return len(t.stack)*4 - t.stackUsed()
}

// Stack exposes the task's stack words. Ports that run tasks on this stack
// write through it; hosts may use it to simulate usage.
func (t *Task) Stack() []uint32 { return t.stack }
