//go:build rp2040 || rp2350

// cmd/boardtest/main.go
//
// On-device smoke test for a Pico carrier: brings the kernel up on real
// controllers, checks an SHTC3 on i2c0 through the transaction machine,
// and streams readings to an HM-10 on uart1. Console output goes over USB.
package main

import (
	"context"
	"machine"
	"time"

	"tinygo.org/x/drivers/shtc3"

	"sensornode-go/drivers/hm10"
	"sensornode-go/kernel/dispatch"
	"sensornode-go/kernel/i2cm"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
	"sensornode-go/kernel/uartm"
	"sensornode-go/platform/drvshim"
	"sensornode-go/platform/rp2"
	"sensornode-go/services/telemetry"
	"sensornode-go/x/strconvx"
)

// Pico wiring for the bench setup.
const (
	i2cSDA = machine.GP4
	i2cSCL = machine.GP5
	uartTX = machine.GP8
	uartRX = machine.GP9
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boardtest: boot")

	ctx := context.Background()

	s := sched.New()
	p := power.New(power.Config{Levels: 5, Sleeper: rp2.Sleeper{}})
	loop := dispatch.New(s, p)

	i2c, err := rp2.OpenI2C(0, 400_000, i2cSDA, i2cSCL)
	if err != nil {
		fatal("i2c0", err)
	}
	uart, err := rp2.OpenUART(1, hm10.Baud, uartTX, uartRX)
	if err != nil {
		fatal("uart1", err)
	}

	im := i2cm.New(i2cm.Config{Driver: i2c, Sched: s, Power: p, BlockLevel: 2})
	um := uartm.New(uartm.Config{Driver: uart, Sched: s, Power: p, BlockLevel: 3})
	go pump(ctx, i2c.IRQSignal(), im.ServiceIRQ)
	go pump(ctx, uart.IRQSignal(), um.ServiceIRQ)

	// Stock tinygo driver over the transaction machine.
	env := shtc3.New(drvshim.NewI2C(im).WithTimeout(250))
	radio := hm10.Open(um, telemetry.EvtLinkDone)

	loop.Register(telemetry.EvtLinkDone, func() {})
	go func() {
		radio.WriteBanner()
		for {
			_ = env.WakeUp()
			tmc, rhx100, err := env.ReadTemperatureHumidity()
			_ = env.Sleep()
			if err != nil {
				println("shtc3:", err.Error())
			} else {
				line := "T=" + strconvx.FormatInt(int64(tmc)/100, 10) +
					"dC RH=" + strconvx.FormatInt(int64(rhx100)/100, 10) + "%\n"
				print(line)
				radio.Write(line)
			}
			time.Sleep(2 * time.Second)
		}
	}()

	loop.Run(ctx)
}

// pump services controller conditions on a goroutine, standing in for the
// NVIC until the per-peripheral handlers move onto real vectors.
func pump(ctx context.Context, signal <-chan struct{}, service func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			service()
		}
	}
}

func fatal(what string, err error) {
	for {
		println("boardtest:", what, err.Error())
		time.Sleep(time.Second)
	}
}
