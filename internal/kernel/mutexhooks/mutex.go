// Package mutexhooks provides a minimal owned-lock implementation of
// kernel.OwnedLock, the hook surface the kernel core uses to support
// priority inheritance and robust ownership transfer on Kill. The
// synchronization primitive itself (the original's port-level mutex with
// recursive/error-check/robust variants) is out of this core's scope; this
// package exists only to give SetPrio and Kill something real to exercise
// and to demonstrate the hook contract a real mutex would implement.
package mutexhooks

import "github.com/nilrun/statekit/internal/kernel"

// Mode selects ownership-death semantics, mirroring the original kernel's
// mutex type flags (normal vs robust).
type Mode int

const (
	// Normal mutexes have no defined behavior if their owner dies holding
	// them; this implementation simply never recovers from it.
	Normal Mode = iota
	// Robust mutexes transfer ownership to the highest-priority waiter
	// with OwnerDead when Kill reaches their owner.
	Robust
)

// Mutex is a priority-inheriting, optionally robust lock built directly
// on kernel.Semaphore with limit 1: Lock is SemTake, Unlock is SemGive,
// and owner bookkeeping plus the OwnedLock hooks are layered on top.
type Mutex struct {
	mode  Mode
	sem   *kernel.Semaphore
	k     *kernel.Kernel
	owner *kernel.Task

	inconsistent bool
}

// New creates an unlocked mutex.
func New(k *kernel.Kernel, mode Mode) *Mutex {
	return &Mutex{mode: mode, sem: kernel.NewSemaphore(1, 1), k: k}
}

// Lock acquires the mutex for self, applying priority inheritance: while
// self waits, the current owner's effective priority is boosted to at
// least self's so it cannot be starved by lower-priority tasks ahead of
// it in the ready list (the classic priority-inversion fix). The boost
// touches only the owner's effective priority, never its base priority --
// Unlock restores it once this lock no longer justifies the boost.
func (m *Mutex) Lock(self *kernel.Task) kernel.Event {
	if m.owner != nil {
		m.k.Inherit(self, m.owner)
	}
	ev := m.k.SemTake(self, m.sem, kernel.Infinite)
	if ev == kernel.Success {
		m.owner = self
		self.AddOwnedLock(m)
	}
	return ev
}

// Unlock releases the mutex, restoring the former owner's effective
// priority to whatever its remaining owned locks (if any) still justify --
// the other half of the §8 law, "L.prio == H.prio until L releases the
// mutex". If it was left inconsistent by a prior OwnerDead transfer, the
// new owner must call MarkConsistent before any other task can lock it
// again (mtx_unlock's EOWNERDEAD/ENOTRECOVERABLE contract).
func (m *Mutex) Unlock(self *kernel.Task) kernel.Event {
	if m.owner != self {
		return kernel.Failure
	}
	self.RemoveOwnedLock(m)
	m.owner = nil
	m.k.RecomputePrio(self)
	return m.k.SemGive(self, m.sem, 0)
}

// MarkConsistent clears the inconsistent flag a robust mutex was left in
// after an OwnerDead transfer, allowing normal locking to resume.
func (m *Mutex) MarkConsistent() {
	m.inconsistent = false
}

// Robust reports whether m uses owner-dead recovery semantics.
func (m *Mutex) Robust() bool { return m.mode == Robust }

// MarkInconsistent flags m as left in an indeterminate state by a dead
// owner.
func (m *Mutex) MarkInconsistent() { m.inconsistent = true }

// TransferTo hands ownership to the highest-priority waiter (if any),
// waking it with event instead of Success.
func (m *Mutex) TransferTo(event kernel.Event) bool {
	waiter, ok := m.k.SemFirstWaiter(m.sem)
	if !ok {
		m.owner = nil
		return false
	}
	m.k.SemTransfer(m.sem, waiter, event)
	m.owner = waiter
	return true
}

// WaiterPriority returns the priority of the highest-priority task
// currently blocked on Lock, for inheritance recomputation.
func (m *Mutex) WaiterPriority() (int, bool) {
	waiter, ok := m.k.SemFirstWaiter(m.sem)
	if !ok {
		return 0, false
	}
	return waiter.Prio(), true
}
