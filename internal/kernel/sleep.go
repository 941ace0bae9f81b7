package kernel

import "time"

// rearmTimer points the port's single timer at the earliest deadline on
// the delay list, or disarms it if the list is empty. Must be called
// with the critical section held.
func (k *Kernel) rearmTimer() {
	head := k.dly.first()
	if head == nil {
		k.port.ArmTimer(time.Time{}, nil)
		return
	}
	k.port.ArmTimer(head.wakeAt, k.onTick)
}

// onTick fires (on its own goroutine, via the port's timer) when the
// earliest armed deadline is reached. It wakes every task whose deadline
// has now passed with Timeout, clearing whatever wait queue each was also
// parked on.
//
// It does not itself hand any of them the baton: this simulation only
// ever has one goroutine actually executing kernel or task-entry code at
// a time (see sched.go), and onTick runs on a timer goroutine that holds
// neither role. A newly-ready task actually starts running the next time
// the true current task reaches a reschedule checkpoint and notices it
// has been outranked -- except when the current task is the idle task,
// which holds no state across passes of idleLoop and parks inside
// reschedule on its next pass once outranked, and so can safely be
// preempted immediately.
func (k *Kernel) onTick() {
	k.Enter()
	now := k.port.Now()
	for head := k.dly.first(); head != nil && !head.wakeAt.After(now); head = k.dly.first() {
		q := head.guard
		if q != nil {
			k.wakeupOne(q, head, Timeout)
		} else {
			k.dly.remove(head)
			head.pendingEvent = Timeout
			k.readyInsert(head)
		}
	}
	k.rearmTimer()
	if k.cur == k.idle {
		if next := k.rdy.first(); next != k.idle {
			k.switchTo(next)
		}
	}
	k.Leave()
}

// SleepFor blocks self for the given duration (Infinite to block
// forever, until Resume or Kill), returning Timeout on normal expiry,
// Success if woken by Resume, or Stopped if killed.
func (k *Kernel) SleepFor(self *Task, d time.Duration) Event {
	k.Enter()
	self.state = Blocked
	self.guard = nil
	k.rdy.remove(self)
	k.delayInsert(self, k.port.Now(), d)
	k.rearmTimer()
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// SleepUntil blocks self until the given absolute time (the zero Time
// blocks forever).
func (k *Kernel) SleepUntil(self *Task, t time.Time) Event {
	d := Infinite
	if !t.IsZero() {
		d = t.Sub(k.port.Now())
	}
	return k.SleepFor(self, d)
}

// SleepNext blocks self until exactly period after its previous SleepNext
// wakeup (drift-free periodic delay, tsk_sleepNext), or now if this is
// its first call. self.start is updated to the computed wake time.
func (k *Kernel) SleepNext(self *Task, period time.Duration) Event {
	k.Enter()
	base := self.start
	if base.IsZero() {
		base = k.port.Now()
	}
	wake := base.Add(period)
	self.start = wake
	self.state = Blocked
	self.guard = nil
	k.rdy.remove(self)
	k.delayInsert(self, k.port.Now(), wake.Sub(k.port.Now()))
	k.rearmTimer()
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// Suspend blocks t indefinitely until a matching Resume; unlike SleepFor,
// it carries no timeout and is driven entirely by Resume or Kill. Only a
// task can suspend itself in the original kernel (tsk_suspend operates on
// the caller); this port allows t != self so that an external controller
// (the admin surface) can suspend a managed task too.
func (k *Kernel) Suspend(self *Task, t *Task) Event {
	if t == self {
		return k.SleepFor(self, Infinite)
	}
	k.Enter()
	if t.state != Ready {
		k.Leave()
		fail("Suspend", "task is not ready")
	}
	k.rdy.remove(t)
	t.state = Blocked
	t.guard = nil
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
	return Success
}

// Resume wakes a task blocked in SleepFor/Suspend (but not one blocked on
// an object wait -- Give or the owning object's own wakeup path is the
// only way to release those) with Success.
func (k *Kernel) Resume(self *Task, t *Task) Event {
	k.Enter()
	if t.state != Blocked || t.guard != nil {
		k.Leave()
		return Failure
	}
	k.delayRemove(t)
	t.pendingEvent = Success
	k.readyInsert(t)
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
	return Success
}
