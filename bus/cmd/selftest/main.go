//go:build rp2040 || rp2350

// bus/cmd/selftest/main.go
//
// On-device self-test for the bus: the package tests rerun on real
// hardware, reporting over USB CDC and on the onboard LED (solid = pass,
// blink = fail).
package main

import (
	"time"

	"sensornode-go/bus"

	"machine"
)

func expectPayload(sub *bus.Subscription, want string, timeout time.Duration) bool {
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		return ok && s == want
	case <-time.After(timeout):
		return false
	}
}

func expectNoMessage(sub *bus.Subscription, timeout time.Duration) bool {
	select {
	case <-sub.Channel():
		return false
	case <-time.After(timeout):
		return true
	}
}

func testBasicPubSub() bool {
	b := bus.NewBus(4)
	sub := b.Subscribe(bus.T("telemetry", "light"))
	b.Publish(&bus.Message{Topic: bus.T("telemetry", "light"), Payload: "hello"})
	return expectPayload(sub, "hello", 100*time.Millisecond)
}

func testExactTopicsOnly() bool {
	b := bus.NewBus(4)
	sub := b.Subscribe(bus.T("telemetry", "light"))
	b.Publish(&bus.Message{Topic: bus.T("telemetry"), Payload: "short"})
	b.Publish(&bus.Message{Topic: bus.T("telemetry", "light", "raw"), Payload: "long"})
	return expectNoMessage(sub, 60*time.Millisecond)
}

func testRetainedMessage() bool {
	b := bus.NewBus(2)
	b.Publish(&bus.Message{Topic: bus.T("config", "node"), Payload: "persist", Retained: true})
	sub := b.Subscribe(bus.T("config", "node"))
	return expectPayload(sub, "persist", 100*time.Millisecond)
}

func testRetainedClear() bool {
	b := bus.NewBus(4)
	b.Publish(&bus.Message{Topic: bus.T("config", "node"), Payload: "keep", Retained: true})
	b.Publish(&bus.Message{Topic: bus.T("config", "node"), Payload: nil, Retained: true})
	return b.Retained(bus.T("config", "node")) == nil
}

func testSlowSubscriberDropsOldest() bool {
	b := bus.NewBus(2)
	sub := b.Subscribe(bus.T("telemetry", "light"))
	for i := 0; i < 5; i++ {
		b.Publish(&bus.Message{Topic: bus.T("telemetry", "light"), Payload: i})
	}
	first := <-sub.Channel()
	second := <-sub.Channel()
	return first.Payload.(int) == 3 && second.Payload.(int) == 4
}

func testUnsubscribeClosesChannel() bool {
	b := bus.NewBus(4)
	sub := b.Subscribe(bus.T("telemetry", "light"))
	sub.Unsubscribe()
	_, open := <-sub.Channel()
	return !open
}

type testFn struct {
	name string
	fn   func() bool
}

func main() {
	// Give the USB CDC time to enumerate so logs show up reliably.
	time.Sleep(250 * time.Millisecond)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.High() // signal "running"

	tests := []testFn{
		{"BasicPubSub", testBasicPubSub},
		{"ExactTopicsOnly", testExactTopicsOnly},
		{"RetainedMessage", testRetainedMessage},
		{"RetainedClear", testRetainedClear},
		{"SlowSubscriberDropsOldest", testSlowSubscriberDropsOldest},
		{"UnsubscribeClosesChannel", testUnsubscribeClosesChannel},
	}

	failed := 0
	println("== bus self-test starting ==")
	for _, tc := range tests {
		if tc.fn() {
			println("[PASS]", tc.name)
		} else {
			println("[FAIL]", tc.name)
			failed++
		}
		time.Sleep(10 * time.Millisecond)
	}
	println("== done, failures:", failed, "==")

	// LED: solid ON if all passed, otherwise slow blink forever.
	if failed == 0 {
		for {
			led.High()
			time.Sleep(2 * time.Second)
		}
	}
	for {
		led.High()
		time.Sleep(250 * time.Millisecond)
		led.Low()
		time.Sleep(250 * time.Millisecond)
	}
}
