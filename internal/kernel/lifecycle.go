package kernel

// taskStopSignal is the panic value Stop uses to unwind a task's entry
// function immediately, mirroring the original kernel's non-returning
// tsk_stop (there realized with a direct jump back into the scheduler;
// Go has no such primitive, so an unwind-via-panic recovered at the
// goroutine boundary is the idiomatic substitute).
type taskStopSignal struct{}

// taskFlipSignal carries a replacement entry point for Flip, which is
// StateOS's tsk_flip: restart the current task from a new entry function
// without destroying its identity (join waiters, priority, ...).
type taskFlipSignal struct{ entry EntryFunc }

// Create allocates a new task in the Stopped state. It is not scheduled
// until Start is called on it.
func (k *Kernel) Create(prio int, entry EntryFunc, name string) *Task {
	if entry == nil {
		fail("Create", "nil entry function")
	}
	k.Enter()
	defer k.Leave()
	t := &Task{
		ID:        k.allocID(),
		Name:      name,
		state:     TaskStopped,
		prio:      prio,
		basic:     prio,
		entry:     entry,
		residency: residencyHeap,
		wake:      make(chan Event, 1),
	}
	k.tasks[t.ID] = t
	return t
}

// CreateDetached allocates and immediately starts a detached task: the
// WRK-style convenience constructor (wrk_create in the original), for
// fire-and-forget work that nobody will Join.
func (k *Kernel) CreateDetached(self *Task, prio int, entry EntryFunc, name string) *Task {
	t := k.Create(prio, entry, name)
	t.detached = true
	if ev := k.Start(self, t); ev == Stopped {
		Stop(self)
	}
	return t
}

// Start transitions t from Stopped to Ready and spawns its goroutine. It
// is a precondition violation to start a task that is not Stopped
// (that is, one that is Ready or Blocked).
func (k *Kernel) Start(self *Task, t *Task) Event {
	k.Enter()
	if t.state != TaskStopped {
		k.Leave()
		fail("Start", "task is not stopped")
	}
	k.readyInsert(t)
	go k.runEntry(t)
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// StartFrom restarts a previously stopped (but not yet reclaimed) task
// from a new entry point, the general form tsk_startFrom generalizes
// tsk_start from: reusing a task's identity (its join queue, priority,
// detached flag) across runs instead of allocating a fresh one.
func (k *Kernel) StartFrom(self *Task, t *Task, entry EntryFunc) Event {
	if entry == nil {
		fail("StartFrom", "nil entry function")
	}
	k.Enter()
	if t.state != TaskStopped {
		k.Leave()
		fail("StartFrom", "task is not stopped")
	}
	t.entry = entry
	k.readyInsert(t)
	go k.runEntry(t)
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// runEntry is a task's goroutine body: wait for the initial baton and run
// generations of its entry function (more than one only if it Flips)
// until it terminates.
func (k *Kernel) runEntry(t *Task) {
	ev := <-t.wake
	k.runGeneration(t, ev)
}

// runGeneration runs one generation of t's body, having already been
// handed the baton with event ev, and recovers whatever it ends with:
// a normal return, a deliberate Stop, a Flip (in which case the next
// generation is dispatched through the normal scheduler before this
// function recurses into it), or an escaped *KernelError.
func (k *Kernel) runGeneration(t *Task, ev Event) {
	if ev == Stopped {
		// Killed before ever reaching this generation's entry call
		// (including its very first dispatch): nothing ran, so there is
		// nothing to unwind -- finish it directly.
		k.Enter()
		k.finish(t)
		return
	}

	var nextEntry EntryFunc
	flipped := false
	killedBetween := false
	func() {
		defer func() {
			r := recover()
			switch sig := r.(type) {
			case nil:
				k.Enter()
				k.finish(t)
			case taskStopSignal:
				k.Enter()
				k.finish(t)
			case taskFlipSignal:
				k.Enter()
				k.rdy.remove(t)
				k.readyInsert(t)
				nextEv := k.reschedule(t)
				k.Leave()
				if nextEv == Stopped {
					killedBetween = true
					return
				}
				nextEntry = sig.entry
				flipped = true
			default:
				// An escaped *KernelError or arbitrary panic: treat as a
				// crashed task, same disposition as a normal return.
				k.Enter()
				k.finish(t)
				panic(r)
			}
		}()
		t.entry(k, t)
	}()

	if killedBetween {
		k.Enter()
		k.finish(t)
		return
	}
	if flipped {
		t.entry = nextEntry
		k.runGeneration(t, Success)
	}
}

// finish is the terminator: it runs with the critical section held, once
// a task's entry function has returned or unwound. It wakes every Join
// waiter and leaves a joinable task Stopped in place (restartable, and
// still listed in the task table); a detached task is marked released and
// handed to the idle task's corpse chain, which drops it from the task
// table, mirroring priv_tsk_terminator / priv_tsk_destroy.
func (k *Kernel) finish(t *Task) {
	k.rdy.remove(t)
	k.dly.remove(t)
	t.state = TaskStopped
	k.wakeupQueue(&t.joinWaiters, Success)
	if t.detached {
		t.residency = residencyReleased
		k.idle.corpses = append(k.idle.corpses, t)
	}
	k.terminate(t)
}

// Stop ends self's own execution immediately; like the original
// tsk_stop, it never returns to its caller.
func Stop(self *Task) {
	_ = self
	panic(taskStopSignal{})
}

// Flip restarts self from a new entry function, preserving its identity.
// Like Stop, it never returns.
func Flip(self *Task, entry EntryFunc) {
	_ = self
	if entry == nil {
		fail("Flip", "nil entry function")
	}
	panic(taskFlipSignal{entry: entry})
}

// Kill forcibly terminates t. If t is blocked, it is woken with Stopped
// instead of whatever it was waiting for; if t currently owns any robust
// locks (OwnedLock.Robust), ownership is transferred to the
// highest-priority waiter with OwnerDead, and the lock is marked
// inconsistent. Killing an already-stopped task is a no-op success.
//
// Unlike the original kernel, this port cannot force another goroutine's
// stack to unwind immediately: a task blocked inside a kernel wait is
// woken with Stopped and expected to notice and return promptly (the same
// contract context.Context cancellation relies on elsewhere in Go). A
// task that is busy running user code with no pending kernel call cannot
// be interrupted until it next calls into the kernel; Stopped is latched
// in t's pendingEvent and delivered the next time t is handed the baton.
func (k *Kernel) Kill(self *Task, t *Task) Event {
	k.Enter()
	if t == k.idle {
		k.Leave()
		fail("Kill", "cannot kill the idle task")
	}
	if t.state == TaskStopped {
		k.Leave()
		return Success
	}
	for _, lock := range t.ownedLocks {
		if lock.Robust() {
			lock.MarkInconsistent()
			lock.TransferTo(OwnerDead)
		}
	}
	t.ownedLocks = nil
	t.blockedOn = nil

	if t == self {
		// Leave deliberately unbalanced here: Stop unwinds via panic and
		// is recovered at the goroutine boundary, which re-acquires the
		// critical section before calling finish (see runGeneration).
		k.Leave()
		Stop(self)
	}

	switch t.state {
	case Ready:
		// Still queued for a dispatch it hasn't reached yet (including
		// its very first one): latch Stopped for delivery at that point
		// instead of forcing it now. runGeneration and every
		// reschedule call site surface a Stopped pendingEvent to the
		// task itself, which is expected to unwind via Stop when it sees
		// one (see Yield for the pattern).
		t.pendingEvent = Stopped
	case Blocked:
		// Woken like any other waiter; the task resumes inside whatever
		// kernel call it was blocked in with a Stopped event and is
		// expected to notice and return promptly. Its actual termination
		// -- waking joiners, corpse-chain handoff -- happens in finish,
		// once it does.
		q := t.guard
		if q != nil {
			k.wakeupOne(q, t, Stopped)
		} else {
			// Sleeping or suspended: on the delay list at most.
			k.delayRemove(t)
			t.pendingEvent = Stopped
			k.readyInsert(t)
		}
	}
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
	return Success
}

// Delete kills t (if still live) and reclaims its storage: Join()s it
// first when it is joinable, so callers waiting on it still observe
// termination. A detached task is not waited for: its storage is
// reclaimed by the idle task once it has finished.
func (k *Kernel) Delete(self *Task, t *Task) Event {
	k.Kill(self, t)
	if !t.detached {
		return k.Join(self, t)
	}
	return Success
}

// Join blocks self until t terminates. Joining a detached task, or self,
// is a precondition violation; several tasks may join the same task, and
// all of them are woken when it terminates.
func (k *Kernel) Join(self *Task, t *Task) Event {
	if t == self {
		fail("Join", "task cannot join itself")
	}
	k.Enter()
	if t.detached {
		k.Leave()
		fail("Join", "task is detached")
	}
	if t.state == TaskStopped {
		// Already terminated: finish already drained the join queue, so
		// there is nothing left to wait for.
		k.Leave()
		return Success
	}
	k.rdy.remove(self)
	k.dly.remove(self)
	self.guard = &t.joinWaiters
	t.joinWaiters.insert(self)
	self.state = Blocked
	ev := k.reschedule(self)
	k.Leave()
	return ev
}

// Detach marks t unjoinable. Detaching an already-detached task, or one
// somebody is already blocked in Join on, is a precondition violation.
func (k *Kernel) Detach(self *Task, t *Task) Event {
	k.Enter()
	defer k.Leave()
	if t.detached {
		fail("Detach", "task already detached")
	}
	if !t.joinWaiters.empty() {
		fail("Detach", "task already has a joiner")
	}
	t.detached = true
	return Success
}

// Yield gives up the remainder of self's turn to any other ready task of
// equal or higher priority, re-queuing self behind its peers (tsk_pass).
func (k *Kernel) Yield(self *Task) {
	k.Enter()
	k.rdy.remove(self)
	k.readyInsert(self)
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
}

// SetPrio changes t's base priority and recomputes its effective priority,
// reordering whichever list currently holds it. If this demotes the
// running task below another ready task, or promotes a blocked task's
// ordering within its wait queue, the change takes effect immediately via
// reschedule.
func (k *Kernel) SetPrio(self *Task, t *Task, prio int) {
	k.Enter()
	t.basic = prio
	k.recomputePrio(t)
	ev := k.reschedule(self)
	k.Leave()
	if ev == Stopped {
		Stop(self)
	}
}

// recomputePrio recalculates t's effective priority as the maximum of its
// base priority and the highest WaiterPriority across every lock t
// currently owns (§4.2 setPrio, invariant 3) -- never the lock t may
// itself be blocked on acquiring, which is the opposite relationship and
// boosts the wrong task. basic is left untouched: inheritance only ever
// moves prio. Must be called with the critical section held.
func (k *Kernel) recomputePrio(t *Task) {
	effective := t.basic
	for _, lock := range t.ownedLocks {
		if p, ok := lock.WaiterPriority(); ok && p > effective {
			effective = p
		}
	}
	t.prio = effective
	switch t.state {
	case Ready:
		k.rdy.reorder(t)
	case Blocked:
		if t.guard != nil {
			t.guard.reorder(t)
		}
	}
}

// Inherit boosts owner's effective priority to at least waiter's, without
// touching owner.basic -- the priority-inheritance half of a mutex's Lock,
// called while waiter is about to block on a lock owner holds but before
// waiter is itself a discoverable WaiterPriority() (it is not yet queued).
// The boost is undone by RecomputePrio once owner releases every lock that
// justified it (§8: "L.prio == H.prio until L releases the mutex").
func (k *Kernel) Inherit(waiter *Task, owner *Task) {
	k.Enter()
	if waiter.prio > owner.prio {
		owner.prio = waiter.prio
		switch owner.state {
		case Ready:
			k.rdy.reorder(owner)
		case Blocked:
			if owner.guard != nil {
				owner.guard.reorder(owner)
			}
		}
	}
	k.Leave()
}

// RecomputePrio is recomputePrio exported for lock implementations to call
// from their own Unlock, once RemoveOwnedLock has dropped the
// just-released lock: it restores owner's effective priority to whatever
// its remaining owned locks (or plain basic, if none) now justify.
func (k *Kernel) RecomputePrio(t *Task) {
	k.Enter()
	k.recomputePrio(t)
	k.Leave()
}

// GetPrio returns t's current effective priority.
func (k *Kernel) GetPrio(t *Task) int {
	k.Enter()
	defer k.Leave()
	return t.prio
}
