// cmd/nodesim/main.go
//
// Hosted node simulation: the full kernel, drivers and application layer
// running against a simulated bus controller. The link output goes to
// stdout, readings are echoed from the bus, and the ambient light level
// sweeps so both the dark and light reports appear. With -link the
// reports leave through a real serial port instead, so an HM-10 on a USB
// adapter carries them over the air.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"sensornode-go/bus"
	"sensornode-go/drivers/hm10"
	"sensornode-go/drivers/si1133"
	"sensornode-go/kernel/dispatch"
	"sensornode-go/kernel/i2cm"
	"sensornode-go/kernel/power"
	"sensornode-go/kernel/sched"
	"sensornode-go/kernel/uartm"
	"sensornode-go/platform/hostserial"
	"sensornode-go/platform/sim"
	"sensornode-go/services/config"
	"sensornode-go/services/telemetry"
)

const device = "nodesim"

// Power levels the simulated node distinguishes.
const (
	pmActive power.Level = iota
	pmSleep
	pmDeepSleep
	pmStop
	pmShutoff

	pmLevels = 5
)

// Ambient light sweep the sensor model plays back, one step per cycle.
var lightSweep = []uint16{5, 12, 40, 180, 400, 180, 40, 12}

// idleSleeper stands in for the core's sleep instruction on the host: a
// short doze at any level past fully active. It runs with the arbiter's
// section held, so it must return quickly.
type idleSleeper struct{}

func (idleSleeper) Sleep(deepest power.Level) {
	if deepest > pmActive {
		time.Sleep(200 * time.Microsecond)
	}
}

// linkDriver is what both link backends provide: the transmit machine's
// driver surface plus the interrupt signal for the pump.
type linkDriver interface {
	uartm.Driver
	IRQSignal() <-chan struct{}
}

func main() {
	linkDev := flag.String("link", "", "serial device for the radio link (default: simulated link on stdout)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load(device)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	b := bus.NewBus(16)
	if err := config.Publish(b, device); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Kernel.
	s := sched.New()
	p := power.New(power.Config{Levels: pmLevels, Sleeper: idleSleeper{}})
	loop := dispatch.New(s, p)

	// Simulated hardware.
	i2c := sim.NewI2CController()
	model := si1133.NewModel()
	model.SetLight(lightSweep[0])
	i2c.AddDevice(si1133.Addr, model)

	var link linkDriver = sim.NewUARTLink(os.Stdout)
	if *linkDev != "" {
		port, err := hostserial.Open(*linkDev, cfg.LinkBaud)
		if err != nil {
			fmt.Fprintln(os.Stderr, "link:", err)
			os.Exit(1)
		}
		defer port.Close()
		link = port
	}

	im := i2cm.New(i2cm.Config{Driver: i2c, Sched: s, Power: p, BlockLevel: pmDeepSleep})
	um := uartm.New(uartm.Config{Driver: link, Sched: s, Power: p, BlockLevel: pmStop})
	sim.Pump(ctx, i2c.IRQSignal(), im.ServiceIRQ)
	sim.Pump(ctx, link.IRQSignal(), um.ServiceIRQ)

	// Sensor bring-up before the dispatch loop starts. The bus reset
	// clears anything a previous run left half-clocked.
	i2c.Reset()
	sensor := si1133.New(im)
	if err := sensor.VerifyPartID(); err != nil {
		fmt.Fprintln(os.Stderr, "sensor:", err)
		os.Exit(1)
	}
	if err := sensor.Configure(); err != nil {
		fmt.Fprintln(os.Stderr, "sensor:", err)
		os.Exit(1)
	}

	// Application.
	radio := hm10.Open(um, telemetry.EvtLinkDone)
	period := time.Duration(cfg.TelemetryPeriodMS) * time.Millisecond
	svc := telemetry.New(sensor, radio, b, cfg, func() {
		go cyclePhases(ctx, s, model, period)
	})
	svc.Register(loop)

	// Echo readings from the bus like any other observer would.
	go func() {
		sub := b.Subscribe(telemetry.TopicLight)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-sub.Channel():
				r := m.Payload.(telemetry.Reading)
				fmt.Printf("[bus] white=%d dark=%v\n", r.White, r.Dark)
			}
		}
	}()

	s.Post(telemetry.EvtBoot)
	loop.Run(ctx)
}

// cyclePhases plays the periodic timer: the conversion phase at
// mid-period, the collection phase at the period boundary. Each full cycle
// advances the ambient light sweep.
func cyclePhases(ctx context.Context, s *sched.Scheduler, model *si1133.Model, period time.Duration) {
	tick := time.NewTicker(period / 2)
	defer tick.Stop()

	force := true
	step := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		if force {
			s.Post(telemetry.EvtForce)
		} else {
			s.Post(telemetry.EvtCycle)
			step++
			model.SetLight(lightSweep[step%len(lightSweep)])
		}
		force = !force
	}
}
