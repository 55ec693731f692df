package sim

import (
	"bytes"
	"testing"

	"sensornode-go/kernel/i2cm"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
	"sensornode-go/kernel/uartm"
)

const (
	evBusDone sched.Events = 1 << 0
	evTxDone  sched.Events = 1 << 1

	devAddr uint8 = 0x49
)

// service drains the controller's interrupt conditions synchronously, the
// way the pump goroutine would in a live run.
func service(has func() bool, svc func()) {
	for has() {
		svc()
	}
}

func TestWriteTransactionReachesDevice(t *testing.T) {
	ctrl := NewI2CController()
	dev := NewRegFile()
	ctrl.AddDevice(devAddr, dev)

	s := sched.New()
	p := power.New(power.Config{Levels: 5})
	m := i2cm.New(i2cm.Config{Driver: ctrl, Sched: s, Power: p, BlockLevel: 2})

	m.Start(i2cm.Request{
		Addr: devAddr, Dir: i2cm.Write,
		Buf: []byte{0xBE, 0xEF}, Count: 2,
		Reg: 0x20, HasRegister: true, Done: evBusDone,
	})
	service(ctrl.HasIRQ, m.ServiceIRQ)

	if !s.Claim(evBusDone) {
		t.Fatal("completion event not posted")
	}
	if dev.Get(0x20) != 0xBE || dev.Get(0x21) != 0xEF {
		t.Fatalf("device registers = %#x %#x, want 0xbe 0xef", dev.Get(0x20), dev.Get(0x21))
	}
	if !m.Available() {
		t.Fatal("machine not available after completion")
	}
}

func TestReadTransactionReturnsDeviceBytes(t *testing.T) {
	ctrl := NewI2CController()
	dev := NewRegFile()
	dev.Set(0x13, 0x01, 0x8F)
	ctrl.AddDevice(devAddr, dev)

	s := sched.New()
	p := power.New(power.Config{Levels: 5})
	m := i2cm.New(i2cm.Config{Driver: ctrl, Sched: s, Power: p, BlockLevel: 2})

	buf := make([]byte, 2)
	m.Start(i2cm.Request{
		Addr: devAddr, Dir: i2cm.Read,
		Buf: buf, Count: 2,
		Reg: 0x13, HasRegister: true, Done: evBusDone,
	})
	service(ctrl.HasIRQ, m.ServiceIRQ)

	if !s.Claim(evBusDone) {
		t.Fatal("completion event not posted")
	}
	if buf[0] != 0x01 || buf[1] != 0x8F {
		t.Fatalf("read %#x, want [0x01 0x8f]", buf)
	}
}

func TestReadPastDeviceWindowPadsWithBusIdle(t *testing.T) {
	ctrl := NewI2CController()
	dev := NewRegFile()
	dev.Set(0xFE, 0x42) // one real byte, window runs off the end
	ctrl.AddDevice(devAddr, dev)

	s := sched.New()
	p := power.New(power.Config{Levels: 5})
	m := i2cm.New(i2cm.Config{Driver: ctrl, Sched: s, Power: p, BlockLevel: 2})

	buf := make([]byte, 4)
	m.Start(i2cm.Request{
		Addr: devAddr, Dir: i2cm.Read,
		Buf: buf, Count: 4,
		Reg: 0xFE, HasRegister: true, Done: evBusDone,
	})
	service(ctrl.HasIRQ, m.ServiceIRQ)

	if !s.Claim(evBusDone) {
		t.Fatal("completion event not posted")
	}
	if buf[0] != 0x42 || buf[2] != 0xFF || buf[3] != 0xFF {
		t.Fatalf("read %#x, want 0x42 then 0xff padding", buf)
	}
}

func TestResetClearsWedgedTransaction(t *testing.T) {
	ctrl := NewI2CController()
	// No device at the address: the transaction never acknowledges.
	s := sched.New()
	p := power.New(power.Config{Levels: 5})
	m := i2cm.New(i2cm.Config{Driver: ctrl, Sched: s, Power: p, BlockLevel: 2})

	m.Start(i2cm.Request{
		Addr: devAddr, Dir: i2cm.Write,
		Buf: []byte{0x00}, Count: 1,
		Reg: 0x00, HasRegister: true, Done: evBusDone,
	})
	if ctrl.HasIRQ() {
		t.Fatal("absent device acknowledged")
	}
	if ctrl.Idle() {
		t.Fatal("controller idle while wedged")
	}
	ctrl.Reset()
	if !ctrl.Idle() {
		t.Fatal("controller not idle after reset")
	}
}

func TestResetClearsRegisterPointer(t *testing.T) {
	ctrl := NewI2CController()
	dev := NewRegFile()
	dev.Set(0x00, 0x5A)
	ctrl.AddDevice(devAddr, dev)

	s := sched.New()
	p := power.New(power.Config{Levels: 5})
	m := i2cm.New(i2cm.Config{Driver: ctrl, Sched: s, Power: p, BlockLevel: 2})

	// Leave the controller's register pointer at 0x13.
	m.Start(i2cm.Request{
		Addr: devAddr, Dir: i2cm.Write,
		Buf: []byte{0x77}, Count: 1,
		Reg: 0x13, HasRegister: true, Done: evBusDone,
	})
	service(ctrl.HasIRQ, m.ServiceIRQ)
	if !s.Claim(evBusDone) {
		t.Fatal("completion event not posted")
	}

	ctrl.Reset()

	// A read with no register-select phase now starts from register zero,
	// not from the pointer the pre-reset transaction left behind.
	buf := make([]byte, 1)
	m.Start(i2cm.Request{
		Addr: devAddr, Dir: i2cm.Read,
		Buf: buf, Count: 1, Done: evBusDone,
	})
	service(ctrl.HasIRQ, m.ServiceIRQ)
	if !s.Claim(evBusDone) {
		t.Fatal("completion event not posted")
	}
	if buf[0] != 0x5A {
		t.Fatalf("read %#x, want register zero's 0x5a", buf[0])
	}
}

func TestUARTLinkTransmit(t *testing.T) {
	var sink bytes.Buffer
	link := NewUARTLink(&sink)

	s := sched.New()
	p := power.New(power.Config{Levels: 5})
	m := uartm.New(uartm.Config{Driver: link, Sched: s, Power: p, BlockLevel: 3})

	m.Start([]byte("light=20\n"), evTxDone)
	service(link.HasIRQ, m.ServiceIRQ)

	if !s.Claim(evTxDone) {
		t.Fatal("completion event not posted")
	}
	if got := string(link.TakeOutput()); got != "light=20\n" {
		t.Fatalf("link carried %q", got)
	}
	if sink.String() != "light=20\n" {
		t.Fatalf("sink carried %q", sink.String())
	}
}
