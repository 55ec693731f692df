//go:build !(rp2040 || rp2350)

// Package hostserial backs the stream transmit machine with a real serial
// port on a development host, so an HM-10 on a USB adapter can be driven
// by the same machine the firmware uses. The port has no interrupt lines;
// the buffer-empty and transmission-complete conditions are synthesised
// after each accepted byte, which preserves the machine's event ordering.
package hostserial

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"sensornode-go/kernel/uartm"
)

type Port struct {
	mu    sync.Mutex
	w     io.Writer
	close func() error
	kick  chan struct{}

	irq       uartm.IRQ
	txEmptyOn bool
	txDoneOn  bool
}

// Open opens device at the given baud rate.
func Open(device string, baud int) (*Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("hostserial: open %s: %w", device, err)
	}
	return &Port{w: p, close: p.Close, kick: make(chan struct{}, 1)}, nil
}

// IRQSignal pulses whenever an enabled condition is raised; wire it to a
// Pump that calls the owning machine's ServiceIRQ.
func (p *Port) IRQSignal() <-chan struct{} { return p.kick }

func (p *Port) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// HasIRQ reports whether an enabled condition is pending. Test helper.
func (p *Port) HasIRQ() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.irq&p.enabled() != 0
}

func (p *Port) enabled() uartm.IRQ {
	var m uartm.IRQ
	if p.txEmptyOn {
		m |= uartm.IRQTxEmpty
	}
	if p.txDoneOn {
		m |= uartm.IRQTxDone
	}
	return m
}

func (p *Port) raise(irq uartm.IRQ) {
	p.irq |= irq
	if p.irq&p.enabled() != 0 {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

// ---- uartm.Driver ----

func (p *Port) WriteByte(b byte) {
	p.mu.Lock()
	_, _ = p.w.Write([]byte{b})
	// The OS buffers writes, so the holding register is free again as
	// soon as Write returns.
	p.raise(uartm.IRQTxEmpty)
	p.mu.Unlock()
}

func (p *Port) SetTxEmptyIRQ(on bool) {
	p.mu.Lock()
	p.txEmptyOn = on
	if on {
		p.raise(uartm.IRQTxEmpty)
	}
	p.mu.Unlock()
}

func (p *Port) SetTxDoneIRQ(on bool) {
	p.mu.Lock()
	p.txDoneOn = on
	if on {
		p.raise(uartm.IRQTxDone)
	}
	p.mu.Unlock()
}

func (p *Port) PendingIRQ() uartm.IRQ {
	p.mu.Lock()
	irq := p.irq & p.enabled()
	p.irq &^= irq
	p.mu.Unlock()
	return irq
}
