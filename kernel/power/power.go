// Package power arbitrates sleep depth. Peripherals block the shallowest
// power level their active operation cannot survive; at every idle point
// the arbiter enters the deepest level no one has blocked.
package power

import (
	"sensornode-go/kernel/critical"
	"sensornode-go/kernel/fault"
)

// Level is an index into the caller-defined ordered enumeration of power
// levels, from 0 (fully active) to Config.Levels-1 (deepest sleep).
type Level uint8

// Sleeper is the platform's sleep-entry primitive. Sleep receives the
// deepest level currently allowed; shallow active-wait levels should be a
// no-op return. Sleep is invoked with the arbiter's critical section held,
// so an event raised between the depth decision and the entry instruction
// stays pending and wakes the core.
type Sleeper interface {
	Sleep(deepest Level)
}

// DefaultCeiling is the per-level block count bound applied when Config
// leaves it zero. Exceeding the ceiling means block/unblock calls are
// unbalanced.
const DefaultCeiling = 4

type Config struct {
	Levels  int // number of power levels, >= 1
	Ceiling uint8
	Sleeper Sleeper // nil means EnterSleep is an active-wait no-op
}

// Arbiter is the process-wide power-level block table.
type Arbiter struct {
	cs      critical.Section
	counts  []uint8
	ceiling uint8
	sleeper Sleeper
}

func New(cfg Config) *Arbiter {
	fault.Check(cfg.Levels >= 1, "power: no levels configured")
	c := cfg.Ceiling
	if c == 0 {
		c = DefaultCeiling
	}
	return &Arbiter{
		cs:      critical.New(),
		counts:  make([]uint8, cfg.Levels),
		ceiling: c,
		sleeper: cfg.Sleeper,
	}
}

// Block records that an in-flight operation cannot tolerate sleep at level
// l or deeper. Exceeding the per-level ceiling is an unbalanced
// block/unblock pair and halts.
func (a *Arbiter) Block(l Level) {
	a.cs.Enter()
	fault.Check(int(l) < len(a.counts), "power: block of unknown level")
	fault.Check(a.counts[l] < a.ceiling, "power: block count over ceiling")
	a.counts[l]++
	a.cs.Exit()
}

// Unblock releases a matching Block. Decrementing a zero count halts.
func (a *Arbiter) Unblock(l Level) {
	a.cs.Enter()
	fault.Check(int(l) < len(a.counts), "power: unblock of unknown level")
	fault.Check(a.counts[l] > 0, "power: unblock without block")
	a.counts[l]--
	a.cs.Exit()
}

// DeepestAllowed returns the shallowest level with a nonzero block count,
// or the deepest configured level when nothing is blocked.
func (a *Arbiter) DeepestAllowed() Level {
	a.cs.Enter()
	l := a.deepestAllowed()
	a.cs.Exit()
	return l
}

func (a *Arbiter) deepestAllowed() Level {
	for i, c := range a.counts {
		if c != 0 {
			return Level(i)
		}
	}
	return Level(len(a.counts) - 1)
}

// EnterSleep computes the allowed depth and enters it in one atomic step.
// The decision and the sleep instruction share the critical section: an
// interrupt arriving in between stays pending and takes effect the moment
// the section is released, so no wakeup is lost.
func (a *Arbiter) EnterSleep() {
	a.cs.Enter()
	if a.sleeper != nil {
		a.sleeper.Sleep(a.deepestAllowed())
	}
	a.cs.Exit()
}
