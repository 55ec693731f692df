package uartm

import (
	"testing"

	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
)

const (
	evTxDone sched.Events = 1 << 5

	numLevels = 5
	txBlock   = power.Level(3)
	deepest   = power.Level(numLevels - 1)
)

// fakeLink scripts a serial controller: bytes written land in out, and the
// test injects interrupt conditions one at a time. Enable bookkeeping lets
// tests verify the machine switches sources at the right moments.
type fakeLink struct {
	irq       IRQ
	out       []byte
	txEmptyOn bool
	txDoneOn  bool
}

func (f *fakeLink) WriteByte(b byte)     { f.out = append(f.out, b) }
func (f *fakeLink) SetTxEmptyIRQ(on bool) { f.txEmptyOn = on }
func (f *fakeLink) SetTxDoneIRQ(on bool)  { f.txDoneOn = on }
func (f *fakeLink) PendingIRQ() IRQ      { irq := f.irq; f.irq = 0; return irq }

func (f *fakeLink) inject(m *Machine, irq IRQ) {
	f.irq = irq
	m.ServiceIRQ()
}

// drain feeds buffer-empty interrupts until the machine stops asking for
// them, then delivers the transmission-complete interrupt.
func (f *fakeLink) drain(m *Machine) {
	for f.txEmptyOn {
		f.inject(m, IRQTxEmpty)
	}
	if f.txDoneOn {
		f.inject(m, IRQTxDone)
	}
}

func newMachine(t *testing.T) (*Machine, *fakeLink, *sched.Scheduler, *power.Arbiter) {
	t.Helper()
	f := &fakeLink{}
	s := sched.New()
	p := power.New(power.Config{Levels: numLevels})
	m := New(Config{Driver: f, Sched: s, Power: p, BlockLevel: txBlock})
	return m, f, s, p
}

func TestTransmitSequence(t *testing.T) {
	m, f, s, p := newMachine(t)

	m.Start([]byte("dark=12\n"), evTxDone)
	if !f.txEmptyOn {
		t.Fatal("buffer-empty source not enabled at start")
	}
	if m.Available() {
		t.Fatal("machine available while transmitting")
	}
	if got := p.DeepestAllowed(); got != txBlock {
		t.Fatalf("allowed = %d during transmit, want %d", got, txBlock)
	}

	f.drain(m)

	if string(f.out) != "dark=12\n" {
		t.Fatalf("transmitted %q, want %q", f.out, "dark=12\n")
	}
	if f.txEmptyOn || f.txDoneOn {
		t.Fatal("interrupt sources left enabled after completion")
	}
	if !s.Claim(evTxDone) {
		t.Fatal("completion event not posted")
	}
	if s.Claim(evTxDone) {
		t.Fatal("completion event posted more than once")
	}
	if !m.Available() {
		t.Fatal("machine not available after completion")
	}
	if got := p.DeepestAllowed(); got != deepest {
		t.Fatalf("allowed = %d after completion, want %d", got, deepest)
	}
}

func TestZeroLengthTransmit(t *testing.T) {
	m, f, s, _ := newMachine(t)

	m.Start(nil, evTxDone)
	f.drain(m)

	if len(f.out) != 0 {
		t.Fatalf("zero-length transmit wrote %q", f.out)
	}
	if !s.Claim(evTxDone) {
		t.Fatal("completion event not posted")
	}
	if s.Claim(evTxDone) {
		t.Fatal("completion event posted more than once")
	}
	if !m.Available() {
		t.Fatal("machine not available after zero-length transmit")
	}
}

func TestBackToBackTransmits(t *testing.T) {
	m, f, s, _ := newMachine(t)

	for _, msg := range []string{"one", "two"} {
		f.out = nil
		m.Start([]byte(msg), evTxDone)
		f.drain(m)
		if string(f.out) != msg {
			t.Fatalf("transmitted %q, want %q", f.out, msg)
		}
		if !s.Claim(evTxDone) {
			t.Fatalf("%q: completion not posted", msg)
		}
	}
}

func expectHalt(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected fatal assertion")
		}
	}()
	fn()
}

func TestIllegalEventsHalt(t *testing.T) {
	t.Run("complete while transmitting", func(t *testing.T) {
		m, f, _, _ := newMachine(t)
		m.Start([]byte("x"), evTxDone)
		expectHalt(t, func() { f.inject(m, IRQTxDone) })
	})

	t.Run("buffer empty while draining", func(t *testing.T) {
		m, f, _, _ := newMachine(t)
		m.Start([]byte("x"), evTxDone)
		f.inject(m, IRQTxEmpty) // the byte
		f.inject(m, IRQTxEmpty) // source handoff, now draining
		expectHalt(t, func() { f.inject(m, IRQTxEmpty) })
	})
}

func TestOversizedPayloadHalts(t *testing.T) {
	m, _, _, _ := newMachine(t)
	expectHalt(t, func() { m.Start(make([]byte, BufSize+1), evTxDone) })
}
