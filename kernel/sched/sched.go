// Package sched holds the pending-event register: a bitmask of deferred
// work posted by interrupt handlers and drained by the dispatch loop. Each
// bit is a caller-defined event identifier; the register itself attaches no
// meaning to them.
package sched

import "sensornode-go/kernel/critical"

// Events is a set of single-bit event identifiers.
type Events uint32

// None is the empty event set: posting it is a no-op, for operations whose
// completion nobody needs to observe.
const None Events = 0

// Scheduler is the process-wide pending-event set. All mutation happens
// inside a critical section so interrupt handlers and the dispatch loop can
// touch it from any context.
type Scheduler struct {
	cs      critical.Section
	pending Events
}

func New() *Scheduler {
	return &Scheduler{cs: critical.New()}
}

// Post ORs e into the pending set. Idempotent: posting an already-pending
// event does not double-count. Callable from interrupt context.
func (s *Scheduler) Post(e Events) {
	s.cs.Enter()
	s.pending |= e
	s.cs.Exit()
}

// Withdraw clears e from the pending set, used when deferred work is
// cancelled before dispatch. No-op if already clear.
func (s *Scheduler) Withdraw(e Events) {
	s.cs.Enter()
	s.pending &^= e
	s.cs.Exit()
}

// Pending returns a snapshot of the pending set. Non-destructive.
func (s *Scheduler) Pending() Events {
	s.cs.Enter()
	p := s.pending
	s.cs.Exit()
	return p
}

// Claim atomically clears the bits of e that are pending and reports
// whether any were. The dispatch loop claims each asserted bit before
// invoking its callback, so one posting is serviced exactly once while the
// callback remains free to re-post for the next pass.
func (s *Scheduler) Claim(e Events) bool {
	s.cs.Enter()
	hit := s.pending&e != 0
	s.pending &^= e
	s.cs.Exit()
	return hit
}
