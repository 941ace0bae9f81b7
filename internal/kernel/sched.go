package kernel

// switchTo makes next the running task, notifying its goroutine. It is a
// no-op if next is already running. Must be called with the critical
// section held.
func (k *Kernel) switchTo(next *Task) {
	if next == k.cur {
		return
	}
	prev := k.cur
	k.cur = next
	if k.onSwitch != nil {
		k.onSwitch(prev, next)
	}
	ev := next.pendingEvent
	next.pendingEvent = Success
	if next == k.idle {
		// Idle can lose the baton without parking (Bootstrap, onTick), so
		// it may be handed it again before consuming the last token; one
		// queued token is enough, and idleLoop ignores the event.
		select {
		case next.wake <- ev:
		default:
		}
		return
	}
	next.wake <- ev
}

// reschedule gives up the CPU if self is no longer the head of the ready
// list, and blocks self's goroutine until it is handed the baton again.
// Every operation that changes the ready list's order -- inserting a
// woken or newly-started task, raising another task's priority, lowering
// self's own -- calls this immediately afterward from self's own
// goroutine, which is the only place preemption can be enacted: this
// simulation has no interrupt to force a switch, so the currently running
// task is responsible for noticing it has been outranked and ceding the
// CPU itself (the same point core_tsk_dispatch is reached from in the
// original kernel).
//
// self need not still be on the ready list: reschedule is also the
// mechanism by which a task that just unlinked itself onto a wait queue
// or the delay queue hands off control. The event it eventually resumes
// with is whatever was sent to self.wake by the task or timer that later
// wakes it (Success, Stopped, Timeout, Deleted, OwnerDead).
//
// Must be called with the critical section held; it is released while
// self is parked and re-acquired before returning.
func (k *Kernel) reschedule(self *Task) Event {
	next := k.rdy.first()
	if next == self {
		// Still own the baton, but may have been marked for death by a
		// concurrent Kill while briefly not holding the critical section
		// (e.g. inside a nested reschedule elsewhere) -- surface that.
		ev := self.pendingEvent
		self.pendingEvent = Success
		return ev
	}
	k.switchTo(next)
	k.Leave()
	ev := <-self.wake
	k.Enter()
	return ev
}

// terminate hands the CPU to the next ready task and never returns control
// to self: used once, at the very end of a task's life, in place of
// reschedule. The caller's goroutine is expected to exit immediately after
// calling this, without waiting on self.wake again.
func (k *Kernel) terminate(self *Task) {
	next := k.rdy.first()
	k.switchTo(next)
	k.Leave()
}
