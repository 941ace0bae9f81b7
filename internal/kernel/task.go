package kernel

import "time"

// State is a task's position in the lifecycle state machine (§4.4).
// There is no separate "running" state: the running task is the Ready task
// holding the baton (see Kernel.cur), normally the head of the ready list.
type State int

const (
	// TaskStopped is the initial/terminal state: the task is on no list.
	// (Named apart from the Event Stopped, which shares this package.)
	TaskStopped State = iota
	// Ready means the task is on the ready list (running, if it is the
	// head, or runnable otherwise).
	Ready
	// Blocked means the task is parked on exactly one wait queue, and
	// possibly also on the delay queue for its timeout.
	Blocked
)

func (s State) String() string {
	switch s {
	case TaskStopped:
		return "stopped"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// residency tracks who owns a Task's or Semaphore's storage, replacing the
// original's self-pointer-or-sentinel `obj.res` trick with an explicit
// three-state enum (see design notes in SPEC_FULL.md).
type residency int

const (
	residencyStatic residency = iota
	residencyHeap
	residencyReleased
)

// Infinite means "no timeout": the distinguished delay value recognized by
// every blocking wait below.
const Infinite time.Duration = -1

// EntryFunc is a task's body. It receives the kernel and the task's own
// handle so it can call back into blocking operations (SleepFor, WaitFor,
// Stop, ...) without relying on an implicit "current task" global.
type EntryFunc func(k *Kernel, self *Task)

// OwnedLock is the minimal hook surface the core needs from a mutex-like
// primitive to support priority inheritance and robust ownership transfer
// on Kill. Mutex itself is out of this core's scope (§1); this interface
// is the hook boundary §6 requires ("Mutex hooks (required)").
type OwnedLock interface {
	// Robust reports whether this lock uses owner-dead semantics.
	Robust() bool
	// MarkInconsistent flags the lock as inconsistent (mtxInconsistent).
	MarkInconsistent()
	// TransferTo attempts to hand ownership to the highest-priority
	// waiter, delivering event to it. Reports whether a successor existed.
	TransferTo(event Event) bool
	// WaiterPriority returns the priority of the highest-priority task
	// currently blocked on this lock, and whether any waiter exists.
	WaiterPriority() (prio int, ok bool)
}

// Task is an independent thread of control: the unit the scheduler and
// the lifecycle operations in this package operate on.
type Task struct {
	// ID is a host-assigned identifier, for admin/trace correlation only
	// (not part of the original C struct; see SPEC_FULL.md).
	ID   uint64
	Name string

	state State
	prio  int // effective priority, possibly boosted by inheritance
	basic int // base priority

	entry EntryFunc

	// join holds the queue of tasks blocked in Join() on this task's
	// termination. detached marks it unjoinable (the DETACHED sentinel).
	joinWaiters waitQueue
	detached    bool

	// ownedLocks is the intrusive mtx.list: locks this task currently
	// holds, consulted for priority-inheritance recomputation and for
	// robust-ownership transfer on Kill.
	ownedLocks []OwnedLock
	// blockedOn is mtx.tree: the single lock this task is waiting to
	// acquire, if any (nil otherwise). Cleared unconditionally on Kill.
	blockedOn OwnedLock

	// guard is the wait queue this task is currently blocked on, nil
	// otherwise. If guard != nil then state == Blocked.
	guard *waitQueue

	// delay/start are the timeout bookkeeping used by the delay queue;
	// wakeAt is the absolute deadline, valid only while on the delay
	// queue. start is the last wake time, used by SleepNext's drift-free
	// periodic delay.
	delay  time.Duration
	wakeAt time.Time
	start  time.Time

	// flagMask is the tmp.flg.flags scratch value: the bitmask a flag-wait
	// is pending on. Valid only while guard == &flagQ.
	flagMask uint32
	// flagQ holds only this task itself while it is blocked in WaitFor:
	// a dedicated single-task queue rather than a shared one, since
	// Give always targets one specific task directly (§4.4).
	flagQ waitQueue

	// corpses is IDLE's terminator chain: heap-owned, detached tasks that
	// self-terminated and are waiting for the idle task to free their
	// storage. Only ever non-nil on the kernel's idle task.
	corpses []*Task

	residency residency

	// wake is the scheduler's run-token: a task's goroutine blocks
	// receiving from it whenever it does not hold the baton, and proceeds
	// only when switchTo sends on it (see sched.go).
	wake chan Event
	// pendingEvent is the Event switchTo delivers the next time this task
	// is handed the baton -- set by whatever unblocked it (a matching
	// Give, a Kill, a delay-list timeout) before it is moved onto the
	// ready list. Sending on wake is deliberately deferred to switchTo so
	// that a task is never resumed before it actually holds the baton.
	pendingEvent Event

	// nextInQueue links this task into whichever list currently owns it
	// (ready, delay, or a wait queue) -- never more than one at a time,
	// per the exclusive-membership invariant in §3.
	nextInQueue *Task
	prevInQueue *Task
	inQueue     *waitQueue // which list nextInQueue/prevInQueue belong to
}

// Prio returns the task's current effective priority.
func (t *Task) Prio() int { return t.prio }

// BasicPrio returns the task's base priority (pre-inheritance).
func (t *Task) BasicPrio() int { return t.basic }

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// Detached reports whether the task is unjoinable.
func (t *Task) Detached() bool { return t.detached }

// AddOwnedLock registers lock as currently held by t, so Kill's robust
// ownership-transfer walk and SetPrio's inheritance recomputation can
// find it. Lock implementations (see internal/kernel/mutexhooks) call
// this from their own Lock method once acquisition succeeds.
func (t *Task) AddOwnedLock(lock OwnedLock) {
	t.ownedLocks = append(t.ownedLocks, lock)
}

// RemoveOwnedLock undoes AddOwnedLock, called from a lock's Unlock once
// release succeeds.
func (t *Task) RemoveOwnedLock(lock OwnedLock) {
	for i, l := range t.ownedLocks {
		if l == lock {
			t.ownedLocks = append(t.ownedLocks[:i], t.ownedLocks[i+1:]...)
			return
		}
	}
}
