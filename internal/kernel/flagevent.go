package kernel

import "time"

// WaitFor blocks self until Give calls from other tasks have together
// cleared every bit of mask, or until timeout elapses (Infinite to wait
// forever). It returns Success once the last pending bit is given, Timeout
// if the deadline passed first, or Stopped if self was killed while waiting.
func (k *Kernel) WaitFor(self *Task, mask uint32, timeout time.Duration) Event {
	return k.waitFor(self, mask, timeout)
}

// WaitUntil is WaitFor with an absolute deadline instead of a relative
// timeout. The zero Time means wait forever.
func (k *Kernel) WaitUntil(self *Task, mask uint32, deadline time.Time) Event {
	delay := Infinite
	if !deadline.IsZero() {
		delay = deadline.Sub(k.port.Now())
	}
	return k.waitFor(self, mask, delay)
}

func (k *Kernel) waitFor(self *Task, mask uint32, delay time.Duration) Event {
	if mask == 0 {
		fail("WaitFor", "zero mask")
	}
	k.Enter()
	self.flagMask = mask
	k.rdy.remove(self)
	self.guard = &self.flagQ
	self.flagQ.insert(self)
	self.state = Blocked
	k.delayInsert(self, k.port.Now(), delay)
	k.rearmTimer()
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// Give delivers flags to t. If t is currently blocked in WaitFor, the bits
// of its pending mask that intersect flags are cleared; t is only woken
// once that mask reaches zero, i.e. every bit it was waiting on has been
// satisfied by some Give (each bit satisfies at most one waiter). A Give
// with no overlapping bits is a no-op and leaves the pending mask
// untouched (per the original kernel, tsk_give only touches tmp.flg.flags
// inside the intersecting branch).
func (k *Kernel) Give(self *Task, t *Task, flags uint32) Event {
	k.Enter()
	if t.state != Blocked || t.guard != &t.flagQ || t.flagMask&flags == 0 {
		k.Leave()
		return Success
	}
	t.flagMask &^= flags
	if t.flagMask == 0 {
		k.wakeupOne(&t.flagQ, t, Success)
	}
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
	return Success
}
