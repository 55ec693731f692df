package si1133

import (
	"sync"

	"sensornode-go/platform/sim"
)

// Model is a behavioural SI1133 for hosted runs: a register file plus the
// part's command engine (four-bit command counter, parameter table, forced
// conversions). Attach it to a sim.I2CController at Addr.
type Model struct {
	*sim.RegFile

	mu     sync.Mutex
	params [64]byte
	light  uint16
}

func NewModel() *Model {
	m := &Model{RegFile: sim.NewRegFile()}
	m.Set(regPartID, PartID)
	m.RegFile.OnWrite = m.onWrite
	return m
}

// SetLight sets the value the next forced conversion reports.
func (m *Model) SetLight(v uint16) {
	m.mu.Lock()
	m.light = v
	m.mu.Unlock()
}

// Param returns a parameter-table entry, for assertions.
func (m *Model) Param(addr uint8) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params[addr&0x3F]
}

func (m *Model) onWrite(reg uint8, data []byte) bool {
	if reg != regCommand || len(data) != 1 {
		return false // plain register write
	}
	cmd := data[0]
	switch {
	case cmd == cmdResetCmdCtr:
		m.Set(regResponse0, m.Get(regResponse0)&0xF0)
	case cmd == cmdForce:
		m.mu.Lock()
		light := m.light
		m.mu.Unlock()
		m.Set(regHostOut0, byte(light>>8), byte(light))
		m.bumpCounter()
	case cmd&cmdParamSet != 0:
		m.mu.Lock()
		m.params[cmd&0x3F] = m.Get(regInput0)
		m.mu.Unlock()
		m.bumpCounter()
	default:
		return false
	}
	return true
}

func (m *Model) bumpCounter() {
	r := m.Get(regResponse0)
	m.Set(regResponse0, r&0xF0|(r+1)&0x0F)
}
