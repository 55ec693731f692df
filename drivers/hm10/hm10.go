// Package hm10 interfaces the application with an HM-10 BLE module behind
// the stream transmit machine. The application hands strings to Write and
// hears back through the completion event; it never sees the link
// hardware or its settings.
package hm10

import (
	"sensornode-go/errcode"
	"sensornode-go/kernel/sched"
	"sensornode-go/kernel/uartm"
)

// Link settings the HM-10 ships with; the platform layer applies them when
// it opens the underlying serial controller.
const (
	Baud     = 9600
	DataBits = 8
	StopBits = 1
)

// BootBanner is transmitted once at startup so a connected client can see
// the node come up.
const BootBanner = "\nHello World\n"

// Device is one HM-10 module on one stream machine.
type Device struct {
	m      *uartm.Machine
	txDone sched.Events
}

// Open binds the module to its stream machine. txDone is posted after
// every completed transmit.
func Open(m *uartm.Machine, txDone sched.Events) *Device {
	return &Device{m: m, txDone: txDone}
}

// Write transmits s over the air. Blocks only while a previous transmit
// is still in flight. A payload larger than the link record is rejected
// here, before it can trip the machine's caller contract.
func (d *Device) Write(s string) error {
	if len(s) > uartm.BufSize {
		return &errcode.E{C: errcode.PayloadTooBig, Op: "hm10.Write",
			Msg: "payload exceeds the link record"}
	}
	d.m.Start([]byte(s), d.txDone)
	return nil
}

// WriteBanner sends the startup banner.
func (d *Device) WriteBanner() {
	d.Write(BootBanner)
}
