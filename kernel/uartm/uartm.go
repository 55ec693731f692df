// Package uartm implements buffered byte transmission over a serial link.
// The machine writes one byte per buffer-empty interrupt, then drains the
// shifter under the transmission-complete interrupt and posts the
// completion event. One Machine per link, one outstanding transmit.
package uartm

import (
	"runtime"

	"sensornode-go/kernel/critical"
	"sensornode-go/kernel/fault"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
)

// BufSize bounds one transmit. Exceeding it is a caller contract
// violation, not a runtime condition.
const BufSize = 80

// State is the transmit phase.
type State uint8

const (
	// Transmitting: bytes are being fed to the transmit buffer. Also the
	// idle resting state.
	Transmitting State = iota
	// Draining: all bytes are queued, awaiting the shifter to empty.
	Draining
)

func (s State) String() string {
	switch s {
	case Transmitting:
		return "Transmitting"
	case Draining:
		return "Draining"
	}
	return "unknown"
}

// IRQ is the set of link interrupt conditions a Machine services.
type IRQ uint8

const (
	// IRQTxEmpty: the transmit buffer can take another byte.
	IRQTxEmpty IRQ = 1 << iota
	// IRQTxDone: the last byte has fully left the shifter.
	IRQTxDone
)

// Driver is the capability surface of one serial link controller.
type Driver interface {
	WriteByte(b byte)
	// SetTxEmptyIRQ enables or disables the buffer-empty interrupt source.
	SetTxEmptyIRQ(on bool)
	// SetTxDoneIRQ enables or disables the transmission-complete source.
	SetTxDoneIRQ(on bool)
	// PendingIRQ reads and clears the asserted interrupt conditions.
	PendingIRQ() IRQ
}

type Config struct {
	Driver Driver
	Sched  *sched.Scheduler
	Power  *power.Arbiter
	// BlockLevel is the shallowest power level active transmission cannot
	// survive.
	BlockLevel power.Level
}

// Machine is the per-link transmit record and state machine.
type Machine struct {
	cs    critical.Section
	drv   Driver
	sched *sched.Scheduler
	pow   *power.Arbiter
	level power.Level

	available bool
	state     State

	buf    [BufSize]byte
	length int
	count  int
	done   sched.Events
}

func New(cfg Config) *Machine {
	fault.Check(cfg.Driver != nil, "uartm: nil driver")
	fault.Check(cfg.Sched != nil, "uartm: nil scheduler")
	fault.Check(cfg.Power != nil, "uartm: nil arbiter")
	return &Machine{
		cs:        critical.New(),
		drv:       cfg.Driver,
		sched:     cfg.Sched,
		pow:       cfg.Power,
		level:     cfg.BlockLevel,
		available: true,
		state:     Transmitting,
	}
}

// Available reports whether the machine can accept a transmit.
func (m *Machine) Available() bool {
	m.cs.Enter()
	a := m.available
	m.cs.Exit()
	return a
}

// Start copies p into the record and begins transmission, blocking the
// caller until the link is free. A zero-length p still runs the drain
// phase and posts its completion event exactly once.
func (m *Machine) Start(p []byte, done sched.Events) {
	fault.Check(len(p) <= BufSize, "uartm: payload exceeds record buffer")

	for {
		m.cs.Enter()
		if m.available {
			break
		}
		m.cs.Exit()
		runtime.Gosched()
	}
	m.pow.Block(m.level)
	m.available = false
	copy(m.buf[:], p)
	m.length = len(p)
	m.count = 0
	m.done = done
	m.state = Transmitting
	m.drv.SetTxEmptyIRQ(true)
	m.cs.Exit()
}

// ServiceIRQ is the link's interrupt entry point.
func (m *Machine) ServiceIRQ() {
	m.cs.Enter()
	irq := m.drv.PendingIRQ()
	if irq&IRQTxEmpty != 0 {
		m.onTxEmpty()
	}
	if irq&IRQTxDone != 0 {
		m.onTxDone()
	}
	m.cs.Exit()
}

func (m *Machine) onTxEmpty() {
	switch m.state {
	case Transmitting:
		if m.count < m.length {
			m.drv.WriteByte(m.buf[m.count])
			m.count++
			return
		}
		m.drv.SetTxEmptyIRQ(false)
		m.state = Draining
		m.drv.SetTxDoneIRQ(true)
	case Draining:
		fault.Fatal("uartm: buffer empty in " + m.state.String())
	default:
		fault.Fatal("uartm: buffer empty in unknown state")
	}
}

func (m *Machine) onTxDone() {
	switch m.state {
	case Draining:
		m.drv.SetTxDoneIRQ(false)
		m.pow.Unblock(m.level)
		m.state = Transmitting
		m.available = true
		m.sched.Post(m.done)
	case Transmitting:
		fault.Fatal("uartm: transmit complete in " + m.state.String())
	default:
		fault.Fatal("uartm: transmit complete in unknown state")
	}
}
