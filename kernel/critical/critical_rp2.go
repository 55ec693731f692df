//go:build rp2040 || rp2350

package critical

import "runtime/interrupt"

// New returns a section that masks interrupt delivery while held, saving
// and restoring the previous mask state so sections nest across instances.
func New() Section { return &irqSection{} }

type irqSection struct{ state interrupt.State }

func (s *irqSection) Enter() { s.state = interrupt.Disable() }
func (s *irqSection) Exit()  { interrupt.Restore(s.state) }
