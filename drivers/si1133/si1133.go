// Package si1133 drives the SI1133 ambient light sensor over the bus
// transaction machine. It exposes the split-phase cycle the hardware
// wants: Force() starts an ADC conversion, ReadWhiteLight() fetches the
// sample when the application's timer fires, and the completion event
// carries the result to the dispatch loop.
//
// The one-time Configure sequence is synchronous: it spins on the machine's
// availability between steps, which is fine at boot before the dispatch
// loop starts and mirrors how the part must be parameterised before use.
package si1133

import (
	"runtime"

	"sensornode-go/errcode"
	"sensornode-go/kernel/i2cm"
	"sensornode-go/kernel/sched"
	"sensornode-go/x/strconvx"
)

// Addr is the part's fixed 7-bit bus address.
const Addr = 0x55

// Registers.
const (
	regPartID    = 0x00
	regInput0    = 0x0A
	regCommand   = 0x0B
	regResponse0 = 0x11
	regHostOut0  = 0x13
)

// Commands and parameter-table addresses.
const (
	cmdResetCmdCtr = 0x00
	cmdForce       = 0x11
	cmdParamSet    = 0x80 // OR with the parameter address

	paramAdcConfig0 = 0x02
	paramChanList   = 0x01

	muxWhiteLight = 0b01011 // ADCMUX selection for the white-light photodiode
	chanZero      = 0b000001
)

// PartID is the identification byte the part answers at register 0.
const PartID = 0x33

// ErrConfig means the part's command counter did not advance after a
// parameter write: the configuration was not accepted.
var ErrConfig error = &errcode.E{
	C: errcode.ConfigRejected, Op: "si1133.Configure",
	Msg: "command counter did not advance",
}

// Device is one sensor on one bus machine.
type Device struct {
	m *i2cm.Machine

	readBuf  [4]byte
	writeBuf [1]byte
	readLen  int
}

func New(m *i2cm.Machine) *Device {
	return &Device{m: m}
}

func (d *Device) read(n int, reg uint8, done sched.Events) {
	d.readLen = n
	d.m.Start(i2cm.Request{
		Addr: Addr, Dir: i2cm.Read,
		Buf: d.readBuf[:], Count: n,
		Reg: reg, HasRegister: true,
		Done: done,
	})
}

func (d *Device) write(val byte, reg uint8, done sched.Events) {
	d.writeBuf[0] = val
	d.m.Start(i2cm.Request{
		Addr: Addr, Dir: i2cm.Write,
		Buf: d.writeBuf[:], Count: 1,
		Reg: reg, HasRegister: true,
		Done: done,
	})
}

// waitIdle spins until the in-flight transaction completes. Bounded by
// hardware progress, exactly like the machine's own start spin.
func (d *Device) waitIdle() {
	for !d.m.Available() {
		runtime.Gosched()
	}
}

// Result assembles the most recent read, most-significant byte first.
func (d *Device) Result() uint32 {
	var v uint32
	for i := 0; i < d.readLen; i++ {
		v = v<<8 | uint32(d.readBuf[i])
	}
	return v
}

// Configure parameterises the part for white-light conversions on channel
// zero. Every parameter write is verified against the part's four-bit
// command counter; a counter that fails to advance reports ErrConfig.
func (d *Device) Configure() error {
	d.write(cmdResetCmdCtr, regCommand, sched.None)
	d.waitIdle()

	d.read(1, regResponse0, sched.None)
	d.waitIdle()
	ctr := d.readBuf[0] & 0x0F

	// ADCCONFIG0: route the white-light photodiode into channel zero.
	d.write(muxWhiteLight, regInput0, sched.None)
	d.waitIdle()
	d.write(cmdParamSet|paramAdcConfig0, regCommand, sched.None)
	d.waitIdle()
	if err := d.verifyCounter(ctr + 1); err != nil {
		return err
	}

	// CHAN_LIST: enable channel zero.
	d.write(chanZero, regInput0, sched.None)
	d.waitIdle()
	d.write(cmdParamSet|paramChanList, regCommand, sched.None)
	d.waitIdle()
	return d.verifyCounter(ctr + 2)
}

func (d *Device) verifyCounter(want uint8) error {
	d.read(1, regResponse0, sched.None)
	d.waitIdle()
	if d.readBuf[0]&0x0F != want&0x0F {
		return ErrConfig
	}
	return nil
}

// Force starts one ADC conversion. Fire-and-forget: the sample is fetched
// later with ReadWhiteLight once the conversion interval has passed.
func (d *Device) Force() {
	d.write(cmdForce, regCommand, sched.None)
}

// ReadWhiteLight fetches the two-byte conversion result; done posts when
// the bytes are in and Result is valid.
func (d *Device) ReadWhiteLight(done sched.Events) {
	d.read(2, regHostOut0, done)
}

// ReadPartID fetches the identification byte into Result.
func (d *Device) ReadPartID(done sched.Events) {
	d.read(1, regPartID, done)
}

// VerifyPartID reads the identification register and checks it answers
// PartID. Synchronous, like Configure: meant for bring-up before the
// dispatch loop starts.
func (d *Device) VerifyPartID() error {
	d.read(1, regPartID, sched.None)
	d.waitIdle()
	if id := d.Result(); id != PartID {
		return &errcode.E{
			C: errcode.BadPartID, Op: "si1133.VerifyPartID",
			Msg: "register 0 answered 0x" + strconvx.FormatUint(uint64(id), 16),
		}
	}
	return nil
}
