// Package drvshim adapts the bus transaction machine to the tinygo driver
// Tx shape, so stock tinygo.org/x/drivers device packages can run over it
// without knowing about events or the dispatch loop.
package drvshim

import (
	"runtime"
	"time"

	"sensornode-go/errcode"
	"sensornode-go/kernel/i2cm"
)

// I2C presents one transaction machine as a synchronous Tx bus.
type I2C struct {
	m         *i2cm.Machine
	timeoutMS int
}

func NewI2C(m *i2cm.Machine) I2C {
	return I2C{m: m, timeoutMS: 25}
}

func (s I2C) WithTimeout(ms int) I2C {
	if ms > 0 {
		s.timeoutMS = ms
	}
	return s
}

// Tx maps the write/read buffer shapes onto transaction records:
//
//	w={reg}, r=n bytes  -> register read
//	w={reg, data...}    -> register write
//	w=data only         -> plain write, no register phase
//	r only              -> plain read, no register phase
//
// A combined multi-byte write plus read has no record shape and is
// rejected. Tx blocks until the transaction completes; if an earlier
// transaction is still holding the machine (a timed-out transfer left it
// wedged), Tx fails fast rather than joining the machine's start spin.
func (s I2C) Tx(addr uint16, w, r []byte) error {
	if !s.m.Available() {
		return &errcode.E{C: errcode.Busy, Op: "drvshim.Tx",
			Msg: "previous transaction still in flight"}
	}

	var req i2cm.Request
	switch {
	case len(w) == 1 && len(r) > 0:
		req = i2cm.Request{Addr: uint8(addr), Dir: i2cm.Read,
			Buf: r, Count: len(r), Reg: w[0], HasRegister: true}
	case len(w) > 1 && len(r) == 0:
		req = i2cm.Request{Addr: uint8(addr), Dir: i2cm.Write,
			Buf: w[1:], Count: len(w) - 1, Reg: w[0], HasRegister: true}
	case len(w) > 0 && len(r) == 0:
		req = i2cm.Request{Addr: uint8(addr), Dir: i2cm.Write,
			Buf: w, Count: len(w)}
	case len(w) == 0 && len(r) > 0:
		req = i2cm.Request{Addr: uint8(addr), Dir: i2cm.Read,
			Buf: r, Count: len(r)}
	default:
		return &errcode.E{C: errcode.Unsupported, Op: "drvshim.Tx",
			Msg: "no transaction shape for this buffer combination"}
	}

	s.m.Start(req)

	deadline := time.Now().Add(time.Duration(s.timeoutMS) * time.Millisecond)
	for !s.m.Available() {
		if time.Now().After(deadline) {
			return &errcode.E{C: errcode.Timeout, Op: "drvshim.Tx"}
		}
		runtime.Gosched()
	}
	return nil
}
