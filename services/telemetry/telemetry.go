// Package telemetry is the application layer of the node: it owns the
// event-bit assignments, registers the deferred callbacks on the dispatch
// loop, and turns timer phases into sensor transactions and link writes.
//
// The cycle alternates two timer phases. The mid-period phase starts an
// ADC conversion; the period phase fetches the finished sample, compares
// it against the darkness threshold, reports over the link and publishes
// the reading on the bus.
package telemetry

import (
	"sensornode-go/bus"
	"sensornode-go/drivers/hm10"
	"sensornode-go/drivers/si1133"
	"sensornode-go/kernel/dispatch"
	"sensornode-go/kernel/sched"
	"sensornode-go/services/config"
	"sensornode-go/x/strconvx"
)

// Application event bits. One bit per deferred callback; the kernel
// packages attach no meaning to them.
// EvtForce sits below EvtCycle so that when both phases land in one
// dispatch pass the conversion is started before its result is fetched.
const (
	EvtBoot sched.Events = 1 << iota
	EvtForce
	EvtCycle
	EvtLight
	EvtLinkDone
)

// Bus topics the service publishes on.
var (
	TopicLight = bus.T("telemetry", "light")
	TopicBoot  = bus.T("telemetry", "boot")
)

// Reading is the payload published on TopicLight.
type Reading struct {
	White uint32
	Dark  bool
}

// Service wires the sensor and the link into the dispatch loop.
type Service struct {
	sensor *si1133.Device
	link   *hm10.Device
	bus    *bus.Bus
	cfg    config.Settings

	// startTimer begins the periodic cycle; the platform provides it and
	// the boot callback invokes it once the link has its banner queued.
	startTimer func()

	// running average inputs reported in the heartbeat line.
	x, y int

	sent int
}

func New(sensor *si1133.Device, link *hm10.Device, b *bus.Bus, cfg config.Settings, startTimer func()) *Service {
	return &Service{sensor: sensor, link: link, bus: b, cfg: cfg, startTimer: startTimer}
}

// Register binds every application callback to its event bit.
func (s *Service) Register(l *dispatch.Loop) {
	l.Register(EvtBoot, s.onBoot)
	l.Register(EvtCycle, s.onCycle)
	l.Register(EvtForce, s.onForce)
	l.Register(EvtLight, s.onLight)
	l.Register(EvtLinkDone, s.onLinkDone)
}

// onBoot announces the node over the link and starts the periodic timer.
func (s *Service) onBoot() {
	s.link.WriteBanner()
	s.bus.Publish(&bus.Message{Topic: TopicBoot, Payload: "up", Retained: true})
	if s.startTimer != nil {
		s.startTimer()
	}
}

// onForce starts one ADC conversion; the sample is collected on the next
// cycle phase, after the conversion interval has passed.
func (s *Service) onForce() {
	s.sensor.Force()
}

// onCycle fetches the finished conversion and sends the heartbeat line.
func (s *Service) onCycle() {
	s.sensor.ReadWhiteLight(EvtLight)

	s.x += 3
	s.y++
	z := float64(s.x) / float64(s.y)
	s.link.Write("z = " + strconvx.FormatFloat(z, 'f', 1, 64) + "\n")
}

// onLight classifies the reading against the darkness threshold, reports
// it over the link and publishes it on the bus.
func (s *Service) onLight() {
	v := s.sensor.Result()
	dark := v < s.cfg.DarkThreshold

	n := strconvx.FormatUint(uint64(v), 10)
	if dark {
		s.link.Write("It's dark = " + n + "\n")
	} else {
		s.link.Write("It's light outside = " + n + "\n")
	}

	s.bus.Publish(&bus.Message{
		Topic:    TopicLight,
		Payload:  Reading{White: v, Dark: dark},
		Retained: true,
	})
}

func (s *Service) onLinkDone() {
	s.sent++
}

// Sent reports how many link completion events have been serviced. Event
// posting is idempotent, so back-to-back completions within one dispatch
// pass count once.
func (s *Service) Sent() int { return s.sent }
