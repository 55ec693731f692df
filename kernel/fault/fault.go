// Package fault is the kernel's assertion mechanism. A failed check means a
// programming defect (an illegal state/event pair, an unbalanced power
// block), not a runtime condition: the shared state can no longer be
// trusted, so the program halts instead of recovering.
package fault

// Fatal halts the program with a component-prefixed message.
func Fatal(msg string) {
	panic("fault: " + msg)
}

// Check halts the program when cond is false.
func Check(cond bool, msg string) {
	if !cond {
		Fatal(msg)
	}
}
