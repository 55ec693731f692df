package sim

import (
	"io"
	"sync"

	"sensornode-go/kernel/uartm"
)

// UARTLink simulates a serial transmit controller. The transmit buffer is
// always immediately empty again after a write, and the shifter drains
// instantly, so the interrupt stream is: one buffer-empty per enabled
// write, then one transmission-complete once that source is enabled.
// Pending conditions are masked by their enable bits on read, the way a
// handler reads IF & IEN.
type UARTLink struct {
	mu   sync.Mutex
	kick chan struct{}

	irq       uartm.IRQ
	txEmptyOn bool
	txDoneOn  bool

	out []byte
	// Sink, when set, receives every transmitted byte (live demo output).
	sink io.Writer
}

func NewUARTLink(sink io.Writer) *UARTLink {
	return &UARTLink{kick: make(chan struct{}, 1), sink: sink}
}

// IRQSignal pulses whenever the link raises an enabled interrupt condition.
func (l *UARTLink) IRQSignal() <-chan struct{} { return l.kick }

// HasIRQ reports whether an enabled condition is pending. Test helper.
func (l *UARTLink) HasIRQ() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.irq&l.enabled() != 0
}

// Output returns everything transmitted so far.
func (l *UARTLink) Output() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.out...)
}

// TakeOutput returns and clears the transmitted bytes.
func (l *UARTLink) TakeOutput() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	l.out = nil
	return out
}

func (l *UARTLink) enabled() uartm.IRQ {
	var m uartm.IRQ
	if l.txEmptyOn {
		m |= uartm.IRQTxEmpty
	}
	if l.txDoneOn {
		m |= uartm.IRQTxDone
	}
	return m
}

func (l *UARTLink) raise(irq uartm.IRQ) {
	l.irq |= irq
	if l.irq&l.enabled() != 0 {
		select {
		case l.kick <- struct{}{}:
		default:
		}
	}
}

// ---- uartm.Driver ----

func (l *UARTLink) WriteByte(b byte) {
	l.mu.Lock()
	l.out = append(l.out, b)
	if l.sink != nil {
		_, _ = l.sink.Write([]byte{b})
	}
	// Buffer is empty again straight away.
	l.raise(uartm.IRQTxEmpty)
	l.mu.Unlock()
}

func (l *UARTLink) SetTxEmptyIRQ(on bool) {
	l.mu.Lock()
	l.txEmptyOn = on
	if on {
		l.raise(uartm.IRQTxEmpty)
	}
	l.mu.Unlock()
}

func (l *UARTLink) SetTxDoneIRQ(on bool) {
	l.mu.Lock()
	l.txDoneOn = on
	if on {
		// Nothing shifts slowly in the simulation: draining is instant.
		l.raise(uartm.IRQTxDone)
	}
	l.mu.Unlock()
}

func (l *UARTLink) PendingIRQ() uartm.IRQ {
	l.mu.Lock()
	irq := l.irq & l.enabled()
	l.irq &^= irq
	l.mu.Unlock()
	return irq
}
