package sim

import "sync"

// regWindow bounds one auto-incrementing read.
const regWindow = 8

// RegFile is a generic register-file device model: 256 one-byte registers
// with auto-increment reads. An optional OnWrite hook lets a test or demo
// give registers behaviour (command engines, counters) without a bespoke
// device type.
type RegFile struct {
	mu   sync.Mutex
	regs [256]byte

	// OnWrite, when set, sees every committed write first; returning true
	// means the hook handled it and the register file stays untouched.
	OnWrite func(reg uint8, data []byte) bool
}

func NewRegFile() *RegFile { return &RegFile{} }

// Set stores values starting at reg.
func (r *RegFile) Set(reg uint8, vals ...byte) {
	r.mu.Lock()
	copy(r.regs[reg:], vals)
	r.mu.Unlock()
}

// Get returns the value of one register.
func (r *RegFile) Get(reg uint8) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[reg]
}

func (r *RegFile) ReadReg(reg uint8) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := int(reg) + regWindow
	if end > len(r.regs) {
		end = len(r.regs)
	}
	return append([]byte(nil), r.regs[reg:end]...)
}

func (r *RegFile) WriteReg(reg uint8, data []byte) {
	r.mu.Lock()
	hook := r.OnWrite
	r.mu.Unlock()
	if hook != nil && hook(reg, data) {
		return
	}
	r.mu.Lock()
	copy(r.regs[reg:], data)
	r.mu.Unlock()
}
