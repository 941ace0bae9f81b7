package trace

import (
	"context"
	"time"

	"github.com/nilrun/statekit/internal/kernel"
	"github.com/nilrun/statekit/internal/logger"
	"github.com/nilrun/statekit/internal/metrics"
)

// SwitchHook returns a kernel.WithSwitchHook callback that publishes a
// context_switch Event to sink for every baton hand-off, and records the
// corresponding Prometheus counter. Publishing happens on its own
// goroutine so a slow or unreachable Redis never stalls the scheduler
// itself -- the trace stream is best-effort observability, not part of
// the kernel's correctness surface.
func SwitchHook(sink *Sink) func(from, to *kernel.Task) {
	return func(from, to *kernel.Task) {
		metrics.RecordContextSwitch()

		e := NewEvent(KindContextSwitch, time.Now())
		if to != nil {
			e.TaskID = to.ID
			e.TaskName = to.Name
		}
		if from != nil {
			e.FromID = from.ID
			e.FromName = from.Name
		}

		go publishBestEffort(sink, e)
	}
}

// PublishTaskCreated records a task's creation.
func PublishTaskCreated(sink *Sink, t *kernel.Task) {
	metrics.RecordTaskCreated(t.Prio())
	e := NewEvent(KindTaskCreated, time.Now())
	e.TaskID = t.ID
	e.TaskName = t.Name
	e.Extra = map[string]interface{}{"priority": t.Prio()}
	go publishBestEffort(sink, e)
}

// PublishTaskTerminated records a task's termination and why it ended.
func PublishTaskTerminated(sink *Sink, t *kernel.Task, reason string) {
	metrics.RecordTaskTerminated(reason)
	e := NewEvent(KindTaskTerminated, time.Now())
	e.TaskID = t.ID
	e.TaskName = t.Name
	e.Extra = map[string]interface{}{"reason": reason}
	go publishBestEffort(sink, e)
}

func publishBestEffort(sink *Sink, e *Event) {
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Publish(ctx, e); err != nil {
		logger.Warn().Err(err).Str("kind", string(e.Kind)).Msg("failed to publish trace event")
	}
}
