//go:build rp2040 || rp2350

// Package rp2 backs the kernel machines with RP2-series hardware: the
// stream machine over a uartx port and the transaction machine over a
// machine.I2C controller. The TinyGo HAL exposes whole transfers rather
// than byte-level bus events, so the shims replay the machines' byte
// sequence against buffered hardware operations at the phase boundaries.
package rp2

import (
	"device/arm"
	"errors"
	"machine"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"sensornode-go/kernel/i2cm"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/uartm"
)

// readWindow bounds one staged hardware read.
const readWindow = 8

var errUnknownController = errors.New("rp2: unknown controller id")

// ---- stream link ----

// UART adapts a uartx port to the stream machine. The port buffers
// internally, so buffer-empty is raised as each byte is accepted and
// transmission-complete as soon as that source is enabled.
type UART struct {
	mu   sync.Mutex
	u    *uartx.UART
	kick chan struct{}

	irq       uartm.IRQ
	txEmptyOn bool
	txDoneOn  bool
}

// OpenUART configures hardware port 0 or 1.
func OpenUART(id int, baud uint32, tx, rx machine.Pin) (*UART, error) {
	var hw *uartx.UART
	switch id {
	case 0:
		hw = uartx.UART0
	case 1:
		hw = uartx.UART1
	default:
		return nil, errUnknownController
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: baud, TX: tx, RX: rx}); err != nil {
		return nil, err
	}
	return &UART{u: hw, kick: make(chan struct{}, 1)}, nil
}

// IRQSignal pulses whenever an enabled condition is raised.
func (u *UART) IRQSignal() <-chan struct{} { return u.kick }

func (u *UART) enabled() uartm.IRQ {
	var m uartm.IRQ
	if u.txEmptyOn {
		m |= uartm.IRQTxEmpty
	}
	if u.txDoneOn {
		m |= uartm.IRQTxDone
	}
	return m
}

func (u *UART) raise(irq uartm.IRQ) {
	u.irq |= irq
	if u.irq&u.enabled() != 0 {
		select {
		case u.kick <- struct{}{}:
		default:
		}
	}
}

func (u *UART) WriteByte(b byte) {
	u.mu.Lock()
	_, _ = u.u.Write([]byte{b})
	u.raise(uartm.IRQTxEmpty)
	u.mu.Unlock()
}

func (u *UART) SetTxEmptyIRQ(on bool) {
	u.mu.Lock()
	u.txEmptyOn = on
	if on {
		u.raise(uartm.IRQTxEmpty)
	}
	u.mu.Unlock()
}

func (u *UART) SetTxDoneIRQ(on bool) {
	u.mu.Lock()
	u.txDoneOn = on
	if on {
		u.raise(uartm.IRQTxDone)
	}
	u.mu.Unlock()
}

func (u *UART) PendingIRQ() uartm.IRQ {
	u.mu.Lock()
	irq := u.irq & u.enabled()
	u.irq &^= irq
	u.mu.Unlock()
	return irq
}

// ---- transaction bus ----

// I2CBus adapts a machine.I2C controller to the transaction machine. Write
// bytes are accumulated and committed as one hardware transfer at the stop;
// a read-tagged address stages a bounded hardware read and serves the bytes
// one acknowledge at a time.
type I2CBus struct {
	mu   sync.Mutex
	hw   *machine.I2C
	kick chan struct{}

	irq  i2cm.IRQ
	busy bool

	expectAddr bool
	readMode   bool
	addr       uint8
	wrote      []byte

	window [readWindow]byte
	stream []byte
	pos    int
	rx     byte
}

// OpenI2C configures hardware controller 0 or 1.
func OpenI2C(id int, freq uint32, sda, scl machine.Pin) (*I2CBus, error) {
	var hw *machine.I2C
	switch id {
	case 0:
		hw = machine.I2C0
	case 1:
		hw = machine.I2C1
	default:
		return nil, errUnknownController
	}
	if err := hw.Configure(machine.I2CConfig{Frequency: freq, SDA: sda, SCL: scl}); err != nil {
		return nil, err
	}
	return &I2CBus{hw: hw, kick: make(chan struct{}, 1)}, nil
}

// IRQSignal pulses whenever the bus raises a condition.
func (b *I2CBus) IRQSignal() <-chan struct{} { return b.kick }

func (b *I2CBus) raise(irq i2cm.IRQ) {
	b.irq |= irq
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *I2CBus) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.busy
}

func (b *I2CBus) Start() {
	b.mu.Lock()
	b.busy = true
	b.expectAddr = true
	b.mu.Unlock()
}

func (b *I2CBus) Stop() {
	b.mu.Lock()
	if !b.readMode && len(b.wrote) > 0 {
		if err := b.hw.Tx(uint16(b.addr), b.wrote, nil); err != nil {
			// Leave the bus wedged, as a missing acknowledge would.
			b.wrote = nil
			b.mu.Unlock()
			return
		}
	}
	b.wrote = nil
	b.stream = nil
	b.busy = false
	b.irq &^= i2cm.IRQAck
	b.raise(i2cm.IRQStop)
	b.mu.Unlock()
}

func (b *I2CBus) WriteByte(v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.expectAddr {
		b.expectAddr = false
		b.addr = v >> 1
		b.readMode = v&1 != 0
		if b.readMode {
			// The register pointer, if any, was written in the phase
			// before the repeated start and is still in wrote.
			if err := b.hw.Tx(uint16(b.addr), b.wrote, b.window[:]); err != nil {
				return // no acknowledge: the transaction wedges
			}
			b.wrote = nil
			b.stream = b.window[:]
			b.pos = 0
			b.rx = b.streamByte()
			b.raise(i2cm.IRQRx)
			return
		}
		b.wrote = nil
		b.raise(i2cm.IRQAck)
		return
	}

	if b.readMode {
		return
	}
	b.wrote = append(b.wrote, v)
	b.raise(i2cm.IRQAck)
}

func (b *I2CBus) Ack() {
	b.mu.Lock()
	b.pos++
	b.rx = b.streamByte()
	b.raise(i2cm.IRQRx)
	b.mu.Unlock()
}

func (b *I2CBus) Nack() {
	b.mu.Lock()
	b.stream = nil
	b.mu.Unlock()
}

func (b *I2CBus) ReadByte() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rx
}

func (b *I2CBus) PendingIRQ() i2cm.IRQ {
	b.mu.Lock()
	irq := b.irq
	b.irq = 0
	b.mu.Unlock()
	return irq
}

func (b *I2CBus) streamByte() byte {
	if b.pos < len(b.stream) {
		return b.stream[b.pos]
	}
	return 0xFF
}

// ---- sleep entry ----

// Sleeper parks the core with wfi for any level past fully active. Pending
// interrupts wake it immediately, so an event raised between the depth
// decision and the instruction is not lost.
type Sleeper struct{}

func (Sleeper) Sleep(deepest power.Level) {
	if deepest == 0 {
		return
	}
	arm.Asm("wfi")
}
