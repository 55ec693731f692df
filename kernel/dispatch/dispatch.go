// Package dispatch runs deferred work. Interrupt handlers post event bits;
// the loop claims each asserted bit once and invokes its callback in
// ordinary execution context, then asks the power arbiter for the deepest
// sleep compatible with whatever is still in flight.
package dispatch

import (
	"context"
	"math/bits"

	"sensornode-go/kernel/fault"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
)

const numEvents = 32

// Loop is the single-threaded dispatcher. Register all callbacks before
// Run; Register is not safe against a running loop.
type Loop struct {
	sched    *sched.Scheduler
	pow      *power.Arbiter
	handlers [numEvents]func()
}

func New(s *sched.Scheduler, p *power.Arbiter) *Loop {
	fault.Check(s != nil, "dispatch: nil scheduler")
	fault.Check(p != nil, "dispatch: nil arbiter")
	return &Loop{sched: s, pow: p}
}

// Register binds a callback to a single event bit. Collisions between
// unrelated events are a caller error and halt.
func (l *Loop) Register(e sched.Events, fn func()) {
	fault.Check(e != 0 && e&(e-1) == 0, "dispatch: event is not a single bit")
	i := bits.TrailingZeros32(uint32(e))
	fault.Check(l.handlers[i] == nil, "dispatch: event already registered")
	l.handlers[i] = fn
}

// ServicePending claims and dispatches every currently asserted event once,
// in fixed bit order, and returns how many callbacks ran. A callback that
// re-posts its own event is picked up on the next call, not this one.
func (l *Loop) ServicePending() int {
	pending := l.sched.Pending()
	n := 0
	for pending != 0 {
		i := bits.TrailingZeros32(uint32(pending))
		e := sched.Events(1) << i
		pending &^= e
		if !l.sched.Claim(e) {
			continue // withdrawn between snapshot and claim
		}
		if fn := l.handlers[i]; fn != nil {
			fn()
		}
		n++
	}
	return n
}

// Run alternates dispatch with sleep until ctx is cancelled. When a pass
// services nothing, the arbiter picks and enters the sleep level; the
// platform Sleeper is responsible for waking on interrupts.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if l.ServicePending() == 0 {
			l.pow.EnterSleep()
		}
	}
}
