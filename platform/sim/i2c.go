// Package sim provides host-side simulated bus and link controllers. They
// implement the kernel driver interfaces and synthesise the interrupt
// stream real hardware would deliver, so the state machines, drivers and
// services run unmodified in tests and in the hosted demo binary.
package sim

import (
	"sync"

	"sensornode-go/kernel/i2cm"
)

// Device models one addressed target on the simulated bus. Register reads
// auto-increment, matching the usual register-file device convention.
type Device interface {
	// ReadReg returns the byte stream starting at reg; the controller
	// serves as many bytes as the transaction asks for.
	ReadReg(reg uint8) []byte
	// WriteReg commits the data bytes written after the register pointer.
	WriteReg(reg uint8, data []byte)
}

// I2CController simulates a two-wire bus controller with a register-pointer
// device model: in a write phase the first byte after the address sets the
// register pointer and subsequent bytes are data. Issuing a stop supersedes
// the acknowledge of the final byte, so the interrupt stream matches the
// transaction machine's legal (state, event) pairs exactly.
type I2CController struct {
	mu   sync.Mutex
	devs map[uint8]Device
	kick chan struct{}

	irq  i2cm.IRQ
	busy bool

	expectAddr bool
	readMode   bool
	addr       uint8
	reg        uint8
	haveReg    bool
	wrote      []byte

	stream []byte
	pos    int
	rx     byte
}

func NewI2CController() *I2CController {
	return &I2CController{
		devs: map[uint8]Device{},
		kick: make(chan struct{}, 1),
	}
}

// AddDevice attaches a device model at a 7-bit address.
func (c *I2CController) AddDevice(addr uint8, d Device) {
	c.mu.Lock()
	c.devs[addr] = d
	c.mu.Unlock()
}

// IRQSignal pulses whenever the controller raises an interrupt condition;
// wire it to a Pump that calls the owning machine's ServiceIRQ.
func (c *I2CController) IRQSignal() <-chan struct{} { return c.kick }

// HasIRQ reports whether a condition is pending. Test helper.
func (c *I2CController) HasIRQ() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irq != 0
}

// Reset aborts any in-flight transaction and clears pending conditions,
// the recovery a wedged bus needs before reuse.
func (c *I2CController) Reset() {
	c.mu.Lock()
	c.irq = 0
	c.busy = false
	c.expectAddr = false
	c.readMode = false
	c.haveReg = false
	c.reg = 0
	c.wrote = nil
	c.stream = nil
	c.mu.Unlock()
}

func (c *I2CController) raise(irq i2cm.IRQ) {
	c.irq |= irq
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// ---- i2cm.Driver ----

func (c *I2CController) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.busy
}

func (c *I2CController) Start() {
	c.mu.Lock()
	c.busy = true
	c.expectAddr = true
	c.mu.Unlock()
}

func (c *I2CController) Stop() {
	c.mu.Lock()
	if !c.readMode && c.haveReg {
		if d := c.devs[c.addr]; d != nil {
			d.WriteReg(c.reg, c.wrote)
		}
	}
	c.wrote = nil
	c.stream = nil
	c.busy = false
	// The stop supersedes the final byte's acknowledge.
	c.irq &^= i2cm.IRQAck
	c.raise(i2cm.IRQStop)
	c.mu.Unlock()
}

func (c *I2CController) WriteByte(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expectAddr {
		c.expectAddr = false
		c.addr = b >> 1
		c.readMode = b&1 != 0
		d := c.devs[c.addr]
		if d == nil {
			return // no acknowledge: the transaction wedges, as on a real bus
		}
		if c.readMode {
			c.stream = d.ReadReg(c.reg)
			c.pos = 0
			c.rx = c.streamByte()
			c.raise(i2cm.IRQRx)
			return
		}
		c.haveReg = false
		c.wrote = nil
		c.raise(i2cm.IRQAck)
		return
	}

	if c.readMode {
		return // write during a read phase: ignored, as hardware would
	}
	if !c.haveReg {
		c.reg = b
		c.haveReg = true
	} else {
		c.wrote = append(c.wrote, b)
	}
	c.raise(i2cm.IRQAck)
}

func (c *I2CController) Ack() {
	c.mu.Lock()
	c.pos++
	c.rx = c.streamByte()
	c.raise(i2cm.IRQRx)
	c.mu.Unlock()
}

func (c *I2CController) Nack() {
	c.mu.Lock()
	c.stream = nil
	c.mu.Unlock()
}

func (c *I2CController) ReadByte() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rx
}

func (c *I2CController) PendingIRQ() i2cm.IRQ {
	c.mu.Lock()
	irq := c.irq
	c.irq = 0
	c.mu.Unlock()
	return irq
}

// streamByte returns the current read byte, or the bus-idle pattern when
// the device has nothing more to say.
func (c *I2CController) streamByte() byte {
	if c.pos < len(c.stream) {
		return c.stream[c.pos]
	}
	return 0xFF
}
