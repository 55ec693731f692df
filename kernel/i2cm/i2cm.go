// Package i2cm implements the register-addressed read/write transaction
// state machine for a two-wire bus controller. One Machine owns one
// physical controller and at most one outstanding transaction; the machine
// advances only from the controller's interrupt entry point and hands the
// finished transaction back to the application through the event register.
package i2cm

import (
	"runtime"

	"sensornode-go/kernel/critical"
	"sensornode-go/kernel/fault"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
)

// Dir is the transaction direction.
type Dir uint8

const (
	Write Dir = 0
	Read  Dir = 1
)

// State is the protocol phase of the in-flight transaction.
type State uint8

const (
	// AddressWrite: start condition and write-tagged address issued,
	// awaiting the address acknowledge. Also the idle resting state.
	AddressWrite State = iota
	// RegisterSelect: target register byte issued on the read path,
	// awaiting its acknowledge before the repeated start.
	RegisterSelect
	// AddressRead: read-tagged address issued, data bytes incoming.
	AddressRead
	// DataTransfer: write path, outbound data bytes in flight.
	DataTransfer
	// AwaitStop: stop condition issued, awaiting its confirmation.
	AwaitStop
)

func (s State) String() string {
	switch s {
	case AddressWrite:
		return "AddressWrite"
	case RegisterSelect:
		return "RegisterSelect"
	case AddressRead:
		return "AddressRead"
	case DataTransfer:
		return "DataTransfer"
	case AwaitStop:
		return "AwaitStop"
	}
	return "unknown"
}

// IRQ is the set of controller interrupt conditions a Machine services.
type IRQ uint8

const (
	// IRQAck: the device acknowledged an address or data byte.
	IRQAck IRQ = 1 << iota
	// IRQRx: a received data byte is available.
	IRQRx
	// IRQStop: the stop condition went out on the wire.
	IRQStop
)

// Driver is the capability surface of one bus controller. The machine
// issues protocol conditions through it and never touches hardware
// registers itself, so any implementation (real controller, simulator)
// can sit underneath.
type Driver interface {
	// Idle reports whether the controller's own protocol engine is idle.
	Idle() bool
	// Start issues a start (or repeated start) condition.
	Start()
	// Stop issues a stop condition.
	Stop()
	// Ack acknowledges the received byte and clocks in the next one.
	Ack()
	// Nack refuses further bytes after the final read.
	Nack()
	// WriteByte queues one outbound byte (address or data).
	WriteByte(b byte)
	// ReadByte takes the received byte out of the controller.
	ReadByte() byte
	// PendingIRQ reads and clears the asserted interrupt conditions.
	PendingIRQ() IRQ
}

// Request describes one transaction. The buffer is handed to the machine
// at Start and is owned by it until the completion event posts; multi-byte
// values travel most-significant byte first, so Buf[0] is the MSB.
type Request struct {
	Addr  uint8 // 7-bit device address
	Dir   Dir
	Buf   []byte
	Count int // bytes to move, 1..len(Buf)
	// Reg is the target register. HasRegister gates the register-select
	// phase: a transaction without one goes straight to its data phase.
	Reg         uint8
	HasRegister bool
	// Done is posted to the event register at stop confirmation.
	Done sched.Events
}

type Config struct {
	Driver Driver
	Sched  *sched.Scheduler
	Power  *power.Arbiter
	// BlockLevel is the shallowest power level the bus protocol cannot
	// survive; it is blocked for the whole transaction.
	BlockLevel power.Level
}

// Machine is the per-controller transaction record and state machine.
type Machine struct {
	cs    critical.Section
	drv   Driver
	sched *sched.Scheduler
	pow   *power.Arbiter
	level power.Level

	available bool
	state     State

	addr      uint8
	dir       Dir
	buf       []byte
	total     int
	remaining int
	reg       uint8
	hasReg    bool
	done      sched.Events
}

func New(cfg Config) *Machine {
	fault.Check(cfg.Driver != nil, "i2cm: nil driver")
	fault.Check(cfg.Sched != nil, "i2cm: nil scheduler")
	fault.Check(cfg.Power != nil, "i2cm: nil arbiter")
	return &Machine{
		cs:        critical.New(),
		drv:       cfg.Driver,
		sched:     cfg.Sched,
		pow:       cfg.Power,
		level:     cfg.BlockLevel,
		available: true,
		state:     AddressWrite,
	}
}

// Available reports whether the machine can accept a transaction. Layered
// drivers spin on it to sequence synchronous command exchanges.
func (m *Machine) Available() bool {
	m.cs.Enter()
	a := m.available
	m.cs.Exit()
	return a
}

// Start begins a transaction, blocking the caller until the machine is
// free. There is no queue and no rejection path: exactly one transaction
// is outstanding per controller, and hardware progress guarantees the spin
// is bounded. A controller that is not protocol-idle at that point is a
// driver invariant violation and halts.
func (m *Machine) Start(req Request) {
	fault.Check(req.Count >= 1 && req.Count <= len(req.Buf), "i2cm: byte count out of range")

	for {
		m.cs.Enter()
		if m.available {
			break
		}
		m.cs.Exit()
		runtime.Gosched()
	}
	// Section is held from here until the start condition is on the wire.
	fault.Check(m.drv.Idle(), "i2cm: controller busy at start")

	m.pow.Block(m.level)
	m.available = false
	m.addr = req.Addr
	m.dir = req.Dir
	m.buf = req.Buf
	m.total = req.Count
	m.remaining = req.Count
	m.reg = req.Reg
	m.hasReg = req.HasRegister
	m.done = req.Done

	if req.Dir == Read && !req.HasRegister {
		// No register-select phase: the start condition carries the
		// read-tagged address and data flows immediately.
		m.state = AddressRead
		m.drv.Start()
		m.drv.WriteByte(m.addr<<1 | uint8(Read))
	} else {
		m.state = AddressWrite
		m.drv.Start()
		m.drv.WriteByte(m.addr<<1 | uint8(Write))
	}
	m.cs.Exit()
}

// ServiceIRQ is the controller's interrupt entry point. It reads and
// clears the asserted conditions and advances the machine once per
// condition, all inside the machine's critical section.
func (m *Machine) ServiceIRQ() {
	m.cs.Enter()
	irq := m.drv.PendingIRQ()
	if irq&IRQAck != 0 {
		m.onAck()
	}
	if irq&IRQRx != 0 {
		m.onRx()
	}
	if irq&IRQStop != 0 {
		m.onStop()
	}
	m.cs.Exit()
}

func (m *Machine) onAck() {
	switch m.state {
	case AddressWrite:
		if m.hasReg {
			m.drv.WriteByte(m.reg)
			if m.dir == Read {
				m.state = RegisterSelect
			} else {
				m.state = DataTransfer
			}
			return
		}
		// Write with no register phase: the address acknowledge opens
		// the data phase directly.
		m.state = DataTransfer
		m.writeNext()
	case RegisterSelect:
		m.drv.Start()
		m.drv.WriteByte(m.addr<<1 | uint8(Read))
		m.state = AddressRead
	case DataTransfer:
		m.writeNext()
	case AddressRead, AwaitStop:
		fault.Fatal("i2cm: acknowledge in " + m.state.String())
	default:
		fault.Fatal("i2cm: acknowledge in unknown state")
	}
}

// writeNext sends the next outbound byte. The remaining counter decrements
// before use so the final byte lands at zero; the index runs MSB first.
func (m *Machine) writeNext() {
	m.remaining--
	m.drv.WriteByte(m.buf[m.total-1-m.remaining])
	if m.remaining == 0 {
		m.drv.Stop()
		m.state = AwaitStop
	}
}

func (m *Machine) onRx() {
	switch m.state {
	case AddressRead:
		m.remaining--
		m.buf[m.total-1-m.remaining] = m.drv.ReadByte()
		if m.remaining > 0 {
			m.drv.Ack()
		} else {
			m.drv.Nack()
			m.drv.Stop()
			m.state = AwaitStop
		}
	case AddressWrite, RegisterSelect, DataTransfer, AwaitStop:
		fault.Fatal("i2cm: data available in " + m.state.String())
	default:
		fault.Fatal("i2cm: data available in unknown state")
	}
}

func (m *Machine) onStop() {
	switch m.state {
	case AwaitStop:
		m.pow.Unblock(m.level)
		m.state = AddressWrite
		m.available = true
		// Buffer ownership returns to the caller here.
		m.sched.Post(m.done)
	case AddressWrite, RegisterSelect, AddressRead, DataTransfer:
		fault.Fatal("i2cm: stop confirmed in " + m.state.String())
	default:
		fault.Fatal("i2cm: stop confirmed in unknown state")
	}
}
