package kernel_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nilrun/statekit/internal/kernel"
)

func TestSemTakeNonBlockingSucceedsWhenCountPositive(t *testing.T) {
	k := kernel.New()
	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(1, 1)
		ev := kk.SemTake(boot, s, 0)
		assert.Equal(t, kernel.Success, ev)
		assert.Equal(t, 0, kk.SemValue(s))
	})
}

func TestSemTakeNonBlockingTimesOutWhenCountZero(t *testing.T) {
	k := kernel.New()
	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(0, 1)
		ev := kk.SemTake(boot, s, 0)
		assert.Equal(t, kernel.Timeout, ev)
	})
}

func TestSemGiveHandsOffDirectlyWithoutTouchingCounter(t *testing.T) {
	k := kernel.New()
	var observed kernel.Event
	var mu sync.Mutex
	var gaveValue int

	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(0, 1)
		taker := kk.Create(6, func(kk *kernel.Kernel, self *kernel.Task) {
			ev := kk.SemTake(self, s, time.Hour)
			mu.Lock()
			observed = ev
			mu.Unlock()
		}, "taker")
		kk.Start(boot, taker)

		// taker is now blocked in SemTake; give should hand off directly
		// rather than incrementing the counter.
		kk.SemGive(boot, s, 0)
		mu.Lock()
		gaveValue = kk.SemValue(s)
		mu.Unlock()
		kk.Join(boot, taker)
	})

	assert.Equal(t, kernel.Success, observed)
	assert.Equal(t, 0, gaveValue)
}

func TestSemGiveNonBlockingTimesOutWhenAtLimitAndNoWaiter(t *testing.T) {
	k := kernel.New()
	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(1, 1)
		ev := kk.SemGive(boot, s, 0)
		assert.Equal(t, kernel.Timeout, ev)
		assert.Equal(t, 1, kk.SemValue(s))
	})
}

func TestSemKillWakesBlockedTakersWithStopped(t *testing.T) {
	k := kernel.New()
	var observed kernel.Event
	var done sync.WaitGroup
	done.Add(1)

	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(0, 1)
		taker := kk.Create(6, func(kk *kernel.Kernel, self *kernel.Task) {
			observed = kk.SemTake(self, s, time.Hour)
			done.Done()
		}, "taker")
		kk.Start(boot, taker)
		kk.SemKill(boot, s)
		done.Wait()
		kk.Join(boot, taker)
	})

	assert.Equal(t, kernel.Stopped, observed)
}

func TestSemDeleteMakesSubsequentOperationsFail(t *testing.T) {
	k := kernel.New()
	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(0, 1)
		kk.SemDelete(boot, s)
		assert.Panics(t, func() {
			kk.SemTake(boot, s, 0)
		})
	})
}

func TestSemTakeOrdersMultipleWaitersByPriority(t *testing.T) {
	k := kernel.New()
	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		s := kernel.NewSemaphore(0, 1)
		low := kk.Create(6, func(kk *kernel.Kernel, self *kernel.Task) {
			kk.SemTake(self, s, time.Hour)
			record("low")
		}, "low")
		high := kk.Create(7, func(kk *kernel.Kernel, self *kernel.Task) {
			kk.SemTake(self, s, time.Hour)
			record("high")
		}, "high")
		kk.Start(boot, low)
		kk.Start(boot, high)

		kk.SemGive(boot, s, 0)
		kk.SemGive(boot, s, 0)
		kk.Join(boot, low)
		kk.Join(boot, high)
	})

	assert.Equal(t, []string{"high", "low"}, order)
}
