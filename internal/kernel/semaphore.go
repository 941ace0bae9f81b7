package kernel

import "time"

// Semaphore is a counting semaphore bounded to [0, limit]. SemTake blocks
// while the count is zero; SemGive blocks while the count is at limit,
// unless a task is already waiting in SemTake, in which case ownership is
// handed off directly to it without ever touching the counter (the
// hand-off optimization ossemaphore.c's priv_sem_give implements).
type Semaphore struct {
	count int
	limit int
	wait  waitQueue

	residency residency
	deleted   bool
}

// NewSemaphore creates a semaphore with the given initial count and
// upper bound. It is a precondition violation for init to exceed limit,
// or for limit to be non-positive.
func NewSemaphore(init, limit int) *Semaphore {
	if limit <= 0 {
		fail("NewSemaphore", "non-positive limit")
	}
	if init < 0 || init > limit {
		fail("NewSemaphore", "initial count out of bounds")
	}
	return &Semaphore{count: init, limit: limit, residency: residencyHeap}
}

// SemKill releases every task currently blocked in SemTake or SemGive on
// s with Stopped, without changing the count. s remains usable afterward.
func (k *Kernel) SemKill(self *Task, s *Semaphore) {
	k.Enter()
	k.wakeupQueue(&s.wait, Stopped)
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
}

// SemDelete is SemKill plus marking s permanently unusable: every
// subsequent operation on it fails immediately.
func (k *Kernel) SemDelete(self *Task, s *Semaphore) {
	k.SemKill(self, s)
	k.Enter()
	s.deleted = true
	s.residency = residencyReleased
	k.Leave()
}

// SemTake acquires one unit of s, blocking up to timeout (Infinite to
// wait forever) while the count is zero. A zero timeout behaves as a
// non-blocking try: Timeout is returned immediately rather than queuing.
func (k *Kernel) SemTake(self *Task, s *Semaphore, timeout time.Duration) Event {
	return k.takeUntil(self, s, timeout)
}

// SemTakeUntil is SemTake with an absolute deadline.
func (k *Kernel) SemTakeUntil(self *Task, s *Semaphore, deadline time.Time) Event {
	delay := Infinite
	if !deadline.IsZero() {
		delay = deadline.Sub(k.port.Now())
	}
	return k.takeUntil(self, s, delay)
}

func (k *Kernel) takeUntil(self *Task, s *Semaphore, delay time.Duration) Event {
	k.Enter()
	if s.deleted {
		k.Leave()
		fail("SemTake", "semaphore is deleted")
	}
	if s.count > 0 {
		if giver := s.wait.first(); giver != nil {
			// Hand-off: a giver is blocked at limit, and its unit replaces
			// the one taken here, so count is left unchanged.
			k.wakeupOne(&s.wait, giver, Success)
			ev := k.reschedule(self)
			k.Leave()
			if ev == Stopped {
				Stop(self)
			}
			return Success
		}
		s.count--
		k.Leave()
		return Success
	}
	if delay == 0 {
		k.Leave()
		return Timeout
	}
	k.rdy.remove(self)
	self.guard = &s.wait
	s.wait.insert(self)
	self.state = Blocked
	k.delayInsert(self, k.port.Now(), delay)
	k.rearmTimer()
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// SemGive releases one unit of s, blocking up to timeout while the count
// is already at limit (Send in the original kernel's naming for the
// producer side of a bounded semaphore). If a task is already blocked in
// SemTake, ownership transfers directly to the highest-priority one and
// the counter is never touched -- the hand-off optimization:
// priv_sem_give's "if core_tsk_wakeup(...) == 0 do not update the
// counter".
func (k *Kernel) SemGive(self *Task, s *Semaphore, timeout time.Duration) Event {
	return k.giveUntil(self, s, timeout)
}

// SemGiveUntil is SemGive with an absolute deadline.
func (k *Kernel) SemGiveUntil(self *Task, s *Semaphore, deadline time.Time) Event {
	delay := Infinite
	if !deadline.IsZero() {
		delay = deadline.Sub(k.port.Now())
	}
	return k.giveUntil(self, s, delay)
}

func (k *Kernel) giveUntil(self *Task, s *Semaphore, delay time.Duration) Event {
	k.Enter()
	if s.deleted {
		k.Leave()
		fail("SemGive", "semaphore is deleted")
	}
	if waiter := s.wait.first(); waiter != nil && s.count == 0 {
		// Hand-off: wake the highest-priority blocked taker directly,
		// never incrementing (and so never needing to decrement) count.
		k.wakeupOne(&s.wait, waiter, Success)
		ev := k.reschedule(self)
		k.Leave()
		if ev == Stopped {
			Stop(self)
		}
		return Success
	}
	if s.count < s.limit {
		s.count++
		k.Leave()
		return Success
	}
	if delay == 0 {
		k.Leave()
		return Timeout
	}
	k.rdy.remove(self)
	self.guard = &s.wait
	s.wait.insert(self)
	self.state = Blocked
	k.delayInsert(self, k.port.Now(), delay)
	k.rearmTimer()
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// SemFirstWaiter returns the highest-priority task currently blocked in
// SemTake on s, for a lock built on a limit-1 semaphore (see
// internal/kernel/mutexhooks) to consult when computing priority
// inheritance or performing a robust ownership transfer.
func (k *Kernel) SemFirstWaiter(s *Semaphore) (*Task, bool) {
	k.Enter()
	defer k.Leave()
	t := s.wait.first()
	if t == nil {
		return nil, false
	}
	return t, true
}

// SemTransfer wakes waiter (previously returned by SemFirstWaiter) with
// event instead of the usual Success, without touching s's counter: the
// mechanism a robust lock's OwnedLock.TransferTo uses to hand ownership
// to a successor with OwnerDead rather than a plain acquire.
func (k *Kernel) SemTransfer(s *Semaphore, waiter *Task, event Event) {
	k.Enter()
	if waiter.state == Blocked && waiter.guard == &s.wait {
		k.wakeupOne(&s.wait, waiter, event)
	}
	k.Leave()
}

// SemValue returns s's current count.
func (k *Kernel) SemValue(s *Semaphore) int {
	k.Enter()
	defer k.Leave()
	return s.count
}
