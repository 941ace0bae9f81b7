// Package runner is a worker-pool-style convenience layer on top of
// internal/kernel: instead of spawning plain OS goroutines, each worker is
// a kernel task at the pool's priority (a Job's own Priority is used only
// for metrics), and the pool's whole lifecycle is just ordinary kernel task
// lifecycle (Create/Start/Kill/Join) driven from one supervisor task.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nilrun/statekit/internal/config"
	"github.com/nilrun/statekit/internal/kernel"
	"github.com/nilrun/statekit/internal/logger"
	"github.com/nilrun/statekit/internal/metrics"
	"github.com/nilrun/statekit/internal/task"
	"github.com/nilrun/statekit/internal/trace"
)

// pollInterval bounds how long a parked worker or the supervisor can go
// without noticing a new job, a pause/resume flip, or a stop signal. Kernel
// tasks have no primitive for blocking on an external Go channel (that
// would hold the baton forever without ever going through reschedule), so
// this is the bridge: SleepFor is real kernel blocking, woken early by
// nothing but expiring promptly enough to feel responsive.
const pollInterval = 10 * time.Millisecond

// Pool runs a fixed number of kernel tasks that drain a shared job queue.
// The zero value is not usable; construct with New.
type Pool struct {
	id       string
	cfg      *config.RunnerConfig
	executor *Executor
	sink     *trace.Sink
	prio     int
	retry    *task.RetryPolicy

	k       *kernel.Kernel
	workers []*kernel.Task

	jobs chan *Job

	state   State
	stateMu sync.RWMutex

	stopping int32
	paused   int32

	started chan struct{}
	done    chan struct{}

	active sync.Map // job ID -> struct{}
}

// New builds a Pool. handlers is registered directly on the Pool's
// Executor; prio is the kernel priority every worker task runs at.
func New(cfg *config.RunnerConfig, kernelCfg *config.KernelConfig, handlers map[string]Handler, sink *trace.Sink, prio int) *Pool {
	id := cfg.ID
	if id == "" {
		id = fmt.Sprintf("runner-%s", uuid.New().String()[:8])
	}

	executor := NewExecutor()
	for jobType, h := range handlers {
		executor.RegisterHandler(jobType, h)
	}

	return &Pool{
		id:       id,
		cfg:      cfg,
		executor: executor,
		sink:     sink,
		prio:     prio,
		retry: &task.RetryPolicy{
			MaxAttempts:    kernelCfg.RetryMaxAttempts,
			InitialBackoff: kernelCfg.RetryInitialBackoff,
			MaxBackoff:     kernelCfg.RetryMaxBackoff,
			BackoffFactor:  kernelCfg.RetryBackoffFactor,
			JitterFactor:   0.1,
		},
		jobs:    make(chan *Job, cfg.Concurrency*4),
		state:   StateIdle,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Submit enqueues j for execution by whichever worker task picks it up
// next. It blocks only if the internal buffer is full.
func (p *Pool) Submit(j *Job) {
	metrics.RecordRunnerJobSubmission(priorityBucket(j.Priority))
	p.jobs <- j
}

// priorityBucket mirrors the kernel priority bands internal/metrics uses
// elsewhere (RecordTaskCreated), so runner job-priority metrics stay on the
// same low/normal/high cardinality instead of one series per raw value.
func priorityBucket(p int) string {
	switch {
	case p >= 192:
		return "high"
	case p >= 64:
		return "normal"
	default:
		return "low"
	}
}

// Start spawns the supervisor task (and through it, Concurrency worker
// tasks) and returns once they are all up and ready to drain jobs.
func (p *Pool) Start(ctx context.Context) error {
	p.stateMu.Lock()
	p.state = StateBusy
	p.stateMu.Unlock()

	p.k = kernel.New(kernel.WithSwitchHook(trace.SwitchHook(p.sink)))

	go p.k.Bootstrap(p.prio+1, p.supervisorEntry, p.id+"-supervisor")

	select {
	case <-p.started:
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Info().
		Str("runner_id", p.id).
		Int("concurrency", p.cfg.Concurrency).
		Msg("runner pool started")

	return nil
}

// Stop signals every worker task to wind down and waits for them to
// actually exit, up to ShutdownTimeout.
func (p *Pool) Stop(ctx context.Context) error {
	p.stateMu.Lock()
	p.state = StateShuttingDown
	p.stateMu.Unlock()

	atomic.StoreInt32(&p.stopping, 1)

	select {
	case <-p.done:
		logger.Info().Str("runner_id", p.id).Msg("runner pool stopped gracefully")
	case <-time.After(p.cfg.ShutdownTimeout):
		logger.Warn().Str("runner_id", p.id).Msg("runner pool shutdown timed out")
	case <-ctx.Done():
		logger.Warn().Str("runner_id", p.id).Msg("runner pool shutdown canceled")
	}

	return nil
}

// Pause stops workers from picking up new jobs without tearing them down.
func (p *Pool) Pause() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.state == StateBusy {
		p.state = StatePaused
		atomic.StoreInt32(&p.paused, 1)
		logger.Info().Str("runner_id", p.id).Msg("runner pool paused")
	}
}

// Resume lets paused workers pick up jobs again.
func (p *Pool) Resume() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.state == StatePaused {
		p.state = StateBusy
		atomic.StoreInt32(&p.paused, 0)
		logger.Info().Str("runner_id", p.id).Msg("runner pool resumed")
	}
}

// State returns the pool's current lifecycle phase.
func (p *Pool) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// ID returns the pool's identifier.
func (p *Pool) ID() string { return p.id }

// Kernel returns the kernel backing this pool's worker tasks, for
// introspection (internal/admin reads task snapshots straight off it
// rather than the Pool poking holes in its own encapsulation for them).
// It is nil until Start has been called.
func (p *Pool) Kernel() *kernel.Kernel { return p.k }

// PendingJobs returns the number of jobs currently buffered, waiting for
// a worker task to pick them up.
func (p *Pool) PendingJobs() int { return len(p.jobs) }

// Concurrency returns the configured worker task count.
func (p *Pool) Concurrency() int { return p.cfg.Concurrency }

// ActiveTasks returns the number of jobs currently executing.
func (p *Pool) ActiveTasks() int {
	count := 0
	p.active.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// supervisorEntry is the Bootstrap entry: it spawns the worker tasks,
// signals Start to return, then waits for a stop request before tearing
// the workers down in order and closing done.
func (p *Pool) supervisorEntry(kk *kernel.Kernel, self *kernel.Task) {
	p.workers = make([]*kernel.Task, p.cfg.Concurrency)
	for i := 0; i < p.cfg.Concurrency; i++ {
		idx := i
		w := kk.Create(p.prio, func(kk *kernel.Kernel, wself *kernel.Task) {
			p.workerLoop(kk, wself, idx)
		}, fmt.Sprintf("%s-worker-%d", p.id, idx))
		kk.Start(self, w)
		p.workers[i] = w
		trace.PublishTaskCreated(p.sink, w)
	}

	metrics.SetActiveRunnerTasks(float64(p.cfg.Concurrency))
	close(p.started)

	for atomic.LoadInt32(&p.stopping) == 0 {
		kk.SleepFor(self, pollInterval)
	}

	for _, w := range p.workers {
		kk.Kill(self, w)
		kk.Join(self, w)
		trace.PublishTaskTerminated(p.sink, w, "shutdown")
	}

	metrics.SetActiveRunnerTasks(0)
	close(p.done)
}

// workerLoop is a worker task's entry body: poll the job queue, run
// whatever it finds with retries, and back off on an empty queue or a
// pause rather than busy-spinning.
func (p *Pool) workerLoop(kk *kernel.Kernel, self *kernel.Task, idx int) {
	log := logger.WithRunner(p.id)
	log.Info().Int("worker_num", idx).Msg("runner worker started")

	for {
		if atomic.LoadInt32(&p.stopping) == 1 {
			return
		}

		if atomic.LoadInt32(&p.paused) == 1 {
			if ev := kk.SleepFor(self, pollInterval); ev == kernel.Stopped {
				return
			}
			continue
		}

		var j *Job
		select {
		case j = <-p.jobs:
		default:
		}

		if j == nil {
			if ev := kk.SleepFor(self, pollInterval); ev == kernel.Stopped {
				return
			}
			continue
		}

		if p.runJob(kk, self, j, log) == kernel.Stopped {
			return
		}
	}
}

// runJob executes j to completion, retrying with the configured backoff
// policy between attempts. Each retry's wait goes through SleepFor so a
// Kill during backoff is noticed immediately instead of after the delay.
func (p *Pool) runJob(kk *kernel.Kernel, self *kernel.Task, j *Job, log zerolog.Logger) kernel.Event {
	p.active.Store(j.ID, struct{}{})
	defer p.active.Delete(j.ID)

	for {
		j.attempt++
		start := time.Now()
		_, err := p.executor.Execute(context.Background(), j)
		if err == nil {
			log.Info().
				Str("job_id", j.ID).
				Str("type", j.Type).
				Int("attempts", j.attempt).
				Dur("duration", time.Since(start)).
				Msg("job completed")
			return kernel.Success
		}

		log.Error().Err(err).Str("job_id", j.ID).Int("attempt", j.attempt).Msg("job execution failed")

		if j.attempt >= p.retry.MaxAttempts {
			log.Error().Str("job_id", j.ID).Msg("job exhausted retries, dropping")
			return kernel.Success
		}

		metrics.RecordRunnerJobRetry()
		backoff := p.retry.CalculateBackoff(j.attempt)
		if ev := kk.SleepFor(self, backoff); ev == kernel.Stopped {
			return kernel.Stopped
		}
	}
}
