package kernel

import "sync"

// critSec is the L0 critical section (§4.1): the single exclusion domain
// every kernel list and task-state mutation happens under. The original
// kernel realizes this by disabling interrupts on a single core, with a
// nesting counter so a critical section entered from inside an ISR that
// interrupted another critical section still unwinds correctly. This port
// has no interrupts to disable: goroutines are real OS threads, so the
// same exclusion is provided by a mutex instead. Nesting is preserved at
// the API level (Enter/Leave still pair up), but every kernel entry point
// below takes the lock exactly once at its own boundary and calls
// unexported helpers that assume it is already held -- so the mutex itself
// never needs to be reentrant.
type critSec struct {
	mu    sync.Mutex
	depth int
}

// Enter begins a critical section, blocking until any concurrent one
// (from another goroutine -- an admin handler, a timer callback, another
// task's Kill) has left.
func (c *critSec) Enter() {
	c.mu.Lock()
	c.depth++
}

// Leave ends the critical section begun by the matching Enter.
func (c *critSec) Leave() {
	c.depth--
	c.mu.Unlock()
}
