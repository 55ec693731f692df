//go:build !(rp2040 || rp2350)

package critical

import "sync"

// New returns a mutex-backed section. Interrupt handlers are ordinary
// goroutines on hosted builds, so mutual exclusion is all that is needed.
func New() Section { return &mutexSection{} }

type mutexSection struct{ mu sync.Mutex }

func (s *mutexSection) Enter() { s.mu.Lock() }
func (s *mutexSection) Exit()  { s.mu.Unlock() }
