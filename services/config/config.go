// Package config resolves the per-device embedded configuration and
// publishes it over the bus as retained messages, one per top-level key,
// so services that start later still see the current settings.
package config

import (
	"sensornode-go/bus"
	"sensornode-go/errcode"

	"github.com/andreyvit/tinyjson"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	configPrefix = "config"
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Settings is the decoded node configuration.
type Settings struct {
	// TelemetryPeriodMS is the LETIMER-style cycle period driving the
	// alternating force/read phases.
	TelemetryPeriodMS int
	// DarkThreshold is the white-light reading below which the node
	// reports darkness over the link.
	DarkThreshold uint32
	// LinkBaud is the serial link rate.
	LinkBaud int
}

// Defaults returns the settings used when a key is absent.
func Defaults() Settings {
	return Settings{
		TelemetryPeriodMS: 2000,
		DarkThreshold:     20,
		LinkBaud:          9600,
	}
}

// Load decodes the embedded configuration for device into Settings,
// falling back to defaults for absent keys.
func Load(device string) (Settings, error) {
	s := Defaults()

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return s, &errcode.E{C: errcode.UnknownDevice, Op: "config.Load", Msg: device}
	}

	m, err := decode(raw)
	if err != nil {
		return s, err
	}

	if tel, ok := m["telemetry"].(map[string]any); ok {
		if v, ok := asInt(tel["period_ms"]); ok {
			s.TelemetryPeriodMS = v
		}
		if v, ok := asInt(tel["dark_threshold"]); ok {
			s.DarkThreshold = uint32(v)
		}
	}
	if link, ok := m["link"].(map[string]any); ok {
		if v, ok := asInt(link["baud"]); ok {
			s.LinkBaud = v
		}
	}
	return s, nil
}

// Publish reads the device config from embedded data and publishes each
// top-level key as a retained message under config/<key>.
func Publish(b *bus.Bus, device string) error {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.UnknownDevice, Op: "config.Publish", Msg: device}
	}

	m, err := decode(raw)
	if err != nil {
		return err
	}

	for k, v := range m {
		b.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		})
	}
	return nil
}

func decode(raw []byte) (map[string]any, error) {
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "config.decode",
			Msg: "embedded config is not a JSON object"}
	}
	return m, nil
}

// asInt accepts the numeric shapes tinyjson produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
