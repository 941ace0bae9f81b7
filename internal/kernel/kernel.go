package kernel

import (
	"sync"
	"time"
)

// Port is the tick source this kernel core runs against: the board-timer
// abstraction §6 calls out as an external interface the port layer must
// supply. The default, realPort (below), uses the real wall clock and a
// single time.AfterFunc timer; a test harness can substitute a virtual
// clock that advances on demand instead (see WithPort).
type Port interface {
	// Now returns the current kernel time.
	Now() time.Time
	// ArmTimer schedules a one-shot callback at deadline, replacing any
	// previously armed timer. Passing the zero Time disarms it.
	ArmTimer(deadline time.Time, fire func())
}

// Kernel is the System singleton (§4.1): the owner of the ready list, the
// delay list, and the critical section guarding both. One Kernel runs one
// simulated single-core system; tests construct an independent Kernel per
// scenario rather than sharing a package-level global.
type Kernel struct {
	critSec

	port Port

	rdy waitQueue // ready list, priority-ordered
	dly waitQueue // delay list, deadline-ordered

	idle *Task
	cur  *Task // current (running) task: the baton holder, normally rdy.first()

	nextID uint64

	tasks map[uint64]*Task // every task created and not yet reclaimed by drainCorpses, for admin/introspection (§4.1 has no analog: this core has no fixed task table to walk, so one is kept here instead)

	onSwitch func(from, to *Task) // optional trace hook, see Option
}

// Option configures a Kernel at construction time, following this
// package's functional-options convention.
type Option func(*Kernel)

// WithPort overrides the tick source. Tests that need deterministic time
// should supply a virtual Port instead of the real-time default.
func WithPort(p Port) Option {
	return func(k *Kernel) { k.port = p }
}

// WithSwitchHook installs a callback invoked every time the running task
// changes, for tracing/metrics (internal/trace, internal/metrics) without
// coupling the core to either package.
func WithSwitchHook(fn func(from, to *Task)) Option {
	return func(k *Kernel) { k.onSwitch = fn }
}

// New constructs a Kernel and its idle task. The idle task is the system's
// lowest-priority, never-terminating task: it runs whenever every other
// task is blocked, and is where self-terminated detached tasks'
// storage is actually reclaimed (the terminator/corpse pattern, §4.4).
func New(opts ...Option) *Kernel {
	k := &Kernel{}
	for _, opt := range opts {
		opt(k)
	}
	if k.port == nil {
		k.port = newRealPort()
	}
	k.tasks = make(map[uint64]*Task)

	k.idle = &Task{
		Name:      "IDLE",
		state:     Ready,
		prio:      minPrio,
		basic:     minPrio,
		detached:  true,
		entry:     idleLoop,
		residency: residencyStatic,
		wake:      make(chan Event, 1),
	}
	k.rdy.insert(k.idle)
	k.cur = k.idle
	// The idle task is the initial baton holder without ever having been
	// handed it through switchTo, so it needs its own first token queued.
	k.idle.wake <- Success
	go k.runEntry(k.idle)
	return k
}

// idleLoop is the idle task's body: besides ceding the CPU forever --
// always possible, since the idle task is the lowest priority task in the
// system and thus never the ready list's head while any other task is
// runnable -- it is also the terminator (priv_tsk_terminator): every time
// it actually gets the CPU back, it first drains any corpses finish
// handed it before resuming the loop.
func idleLoop(k *Kernel, self *Task) {
	for {
		k.Enter()
		k.drainCorpses()
		k.reschedule(self)
		k.Leave()
	}
}

// drainCorpses reclaims every detached task that self-terminated since
// idle last ran (the corpse chain finish appends to, §4.2/§4.4/§5):
// each one's storage is dropped from the task table, mirroring
// priv_tsk_destroy freeing the control block, and the chain itself is
// cleared. Must be called with the critical section held.
func (k *Kernel) drainCorpses() {
	for _, t := range k.idle.corpses {
		delete(k.tasks, t.ID)
	}
	k.idle.corpses = k.idle.corpses[:0]
}

const (
	minPrio = 0
	maxPrio = 255
)

func (k *Kernel) allocID() uint64 {
	k.nextID++
	return k.nextID
}

// Current returns the running task, the one holding the baton. This is
// normally the head of the ready list; after onTick wakes a higher-priority
// task, the two differ until the running task next reschedules. Kernel methods
// generally take the calling task explicitly (see EntryFunc) rather than
// consult this implicitly, but it is exposed for admin/introspection use.
func (k *Kernel) Current() *Task {
	k.Enter()
	defer k.Leave()
	return k.cur
}

// Idle returns the kernel's idle task.
func (k *Kernel) Idle() *Task { return k.idle }

// TaskInfo is a point-in-time, race-free snapshot of one task's externally
// visible state: admin handlers read these instead of dereferencing a
// live *Task's fields outside the critical section that actually
// serializes writes to them.
type TaskInfo struct {
	ID       uint64
	Name     string
	State    State
	Priority int
	Basic    int
	Detached bool
}

func snapshotTask(t *Task) TaskInfo {
	return TaskInfo{
		ID:       t.ID,
		Name:     t.Name,
		State:    t.state,
		Priority: t.prio,
		Basic:    t.basic,
		Detached: t.detached,
	}
}

// TaskSnapshots returns a snapshot of every non-idle task in this Kernel's
// task table: terminated joinable tasks are included, detached tasks the
// idle task has already reclaimed are not -- the admin surface's sole way to
// enumerate tasks, since the core otherwise only deals in *Task handles
// callers already hold.
func (k *Kernel) TaskSnapshots() []TaskInfo {
	k.Enter()
	defer k.Leave()
	out := make([]TaskInfo, 0, len(k.tasks))
	for _, t := range k.tasks {
		out = append(out, snapshotTask(t))
	}
	return out
}

// TaskSnapshot looks up a task by its host-assigned ID, returning false if
// no task with that ID is in the task table (never created, or a detached
// task already reclaimed).
func (k *Kernel) TaskSnapshot(id uint64) (TaskInfo, bool) {
	k.Enter()
	defer k.Leave()
	t, ok := k.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return snapshotTask(t), true
}

// Bootstrap runs entry as the system's first real task, synchronously on
// the calling goroutine, and blocks until it (and, transitively, any
// chain of Join calls it makes) returns. Every other task in the system
// is spawned as its own goroutine by Start; this one exception exists
// because at construction time nothing is running yet for Start's self
// parameter to refer to -- Bootstrap supplies that missing first "self"
// by preempting the idle task directly instead of going through the
// normal dispatch path.
func (k *Kernel) Bootstrap(prio int, entry EntryFunc, name string) {
	k.Enter()
	boot := &Task{
		ID:        k.allocID(),
		Name:      name,
		state:     Ready,
		prio:      prio,
		basic:     prio,
		entry:     entry,
		residency: residencyHeap,
		wake:      make(chan Event, 1),
	}
	k.readyInsert(boot)
	k.tasks[boot.ID] = boot
	// Hand it the baton directly: it is dispatched by fiat rather than
	// through switchTo/the wake channel, since nothing is yet running to
	// send it one.
	k.cur = boot
	if k.onSwitch != nil {
		k.onSwitch(k.idle, boot)
	}
	k.Leave()
	k.runGeneration(boot, Success)
}

// realPort is the default Port: the host's real wall clock and a single
// replaceable time.Timer standing in for the board tick timer.
type realPort struct {
	mu    sync.Mutex
	timer *time.Timer
}

func newRealPort() *realPort { return &realPort{} }

func (p *realPort) Now() time.Time { return time.Now() }

func (p *realPort) ArmTimer(deadline time.Time, fire func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if deadline.IsZero() {
		return
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	p.timer = time.AfterFunc(d, fire)
}
