// config/config_test.go
package config

import (
	"testing"
	"time"

	"sensornode-go/bus"
	"sensornode-go/errcode"
)

func TestPublishEmbedded_RetainedPerKey(t *testing.T) {
	// Override lookup for this test.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "nodesim" {
			return nil, false
		}
		return []byte(`{
			"telemetry": {"period_ms": 500, "dark_threshold": 7},
			"link": {"baud": 115200}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	if err := Publish(b, "nodesim"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Subscribe after publishing; retained messages should arrive immediately.
	for _, key := range []string{"telemetry", "link"} {
		sub := b.Subscribe(bus.T(configPrefix, key))
		select {
		case m := <-sub.Channel():
			if _, ok := m.Payload.(map[string]any); !ok {
				t.Fatalf("%s payload type = %T, want map[string]any", key, m.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for retained %q", key)
		}
	}

	m := b.Retained(bus.T(configPrefix, "telemetry")).Payload.(map[string]any)
	if v, ok := asInt(m["dark_threshold"]); !ok || v != 7 {
		t.Fatalf("dark_threshold = %#v, want 7", m["dark_threshold"])
	}
}

func TestLoad_DecodesSettings(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		return []byte(`{
			"telemetry": {"period_ms": 1000, "dark_threshold": 42},
			"link": {"baud": 19200}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	s, err := Load("nodesim")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.TelemetryPeriodMS != 1000 || s.DarkThreshold != 42 || s.LinkBaud != 19200 {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestLoad_AbsentKeysKeepDefaults(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		return []byte(`{"link": {"baud": 19200}}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	s, err := Load("nodesim")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if s.TelemetryPeriodMS != def.TelemetryPeriodMS || s.DarkThreshold != def.DarkThreshold {
		t.Fatalf("defaults not kept: %+v", s)
	}
	if s.LinkBaud != 19200 {
		t.Fatalf("link.baud = %d, want 19200", s.LinkBaud)
	}
}

func TestLoad_UnknownDevice(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	_, err := Load("nobody")
	if errcode.Of(err) != errcode.UnknownDevice {
		t.Fatalf("err = %v, want unknown_device", err)
	}
}

func TestPublish_NotAnObject(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		return []byte(`[1, 2, 3]`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	err := Publish(bus.NewBus(4), "nodesim")
	if errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("err = %v, want invalid_config", err)
	}
}
