// Package critical provides the one locking primitive the kernel uses: a
// short critical section protecting a read-modify-write of shared state.
//
// On MCU builds a section masks interrupt delivery for its duration; on
// hosted builds it is a mutex. Sections are not reentrant: a holder must
// not re-enter the same instance, but nesting across distinct instances is
// fine (the kernel only ever nests machine -> scheduler/arbiter).
package critical

// Section guards a read-modify-write of state shared with interrupt
// handlers. Enter and Exit must be strictly paired.
type Section interface {
	Enter()
	Exit()
}
