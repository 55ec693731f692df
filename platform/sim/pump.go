package sim

import "context"

// Pump plays the role of the interrupt controller on hosted builds: each
// time the signal pulses it invokes service (the owning machine's
// ServiceIRQ) until ctx ends. Service runs on the pump goroutine, which is
// the "interrupt context" of the simulation.
func Pump(ctx context.Context, signal <-chan struct{}, service func()) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				service()
			}
		}
	}()
}
