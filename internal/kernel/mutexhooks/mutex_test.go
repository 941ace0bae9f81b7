package mutexhooks_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nilrun/statekit/internal/kernel"
	"github.com/nilrun/statekit/internal/kernel/mutexhooks"
)

// TestLockInheritsOwnerPriorityUntilUnlock exercises the §8 priority
// inheritance law directly: while a higher-priority task blocks on a
// mutex a lower-priority task owns, the owner's effective priority must
// equal the waiter's, and must revert to its own basic priority the
// instant it releases the mutex -- not stay boosted forever.
func TestLockInheritsOwnerPriorityUntilUnlock(t *testing.T) {
	k := kernel.New()
	m := mutexhooks.New(k, mutexhooks.Normal)

	var lowPrioWhileBlocking int
	var lowPrioAfterUnlock int

	k.Bootstrap(5, func(kk *kernel.Kernel, boot *kernel.Task) {
		var low *kernel.Task
		low = kk.Create(10, func(kk *kernel.Kernel, self *kernel.Task) {
			m.Lock(self)
			// Hold the mutex until boot signals release.
			kk.WaitFor(self, 0x1, time.Hour)
			m.Unlock(self)
			lowPrioAfterUnlock = kk.GetPrio(low)
		}, "low")
		kk.Start(boot, low)

		var high *kernel.Task
		high = kk.Create(15, func(kk *kernel.Kernel, self *kernel.Task) {
			m.Lock(self)
			m.Unlock(self)
		}, "high")
		kk.Start(boot, high)

		// high is now blocked acquiring the mutex low owns: low must have
		// inherited high's priority.
		lowPrioWhileBlocking = kk.GetPrio(low)

		kk.Give(boot, low, 0x1)
		kk.Join(boot, low)
		kk.Join(boot, high)
	}, "boot")

	assert.Equal(t, 15, lowPrioWhileBlocking, "owner must inherit the blocked waiter's priority")
	assert.Equal(t, 10, lowPrioAfterUnlock, "owner's priority must revert to basic once it releases the mutex")
}

func TestLockUncontendedDoesNotBoostAnyone(t *testing.T) {
	k := kernel.New()
	m := mutexhooks.New(k, mutexhooks.Normal)

	var observedPrio int
	k.Bootstrap(5, func(kk *kernel.Kernel, boot *kernel.Task) {
		var self *kernel.Task
		self = kk.Create(10, func(kk *kernel.Kernel, self *kernel.Task) {
			m.Lock(self)
			observedPrio = kk.GetPrio(self)
			m.Unlock(self)
		}, "solo")
		kk.Start(boot, self)
		kk.Join(boot, self)
	}, "boot")

	assert.Equal(t, 10, observedPrio)
}
