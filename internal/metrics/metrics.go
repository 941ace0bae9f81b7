package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task lifecycle metrics
	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_tasks_created_total",
			Help: "Total number of tasks created",
		},
		[]string{"priority"},
	)

	TasksTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_tasks_terminated_total",
			Help: "Total number of tasks terminated",
		},
		[]string{"reason"}, // normal, stopped, killed
	)

	TaskRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statekit_task_run_duration_seconds",
			Help:    "Wall time a task spent as the running task per dispatch",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"name"},
	)

	// Scheduler metrics
	ContextSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statekit_context_switches_total",
			Help: "Total number of baton hand-offs between tasks",
		},
	)

	ReadyQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statekit_ready_queue_depth",
			Help: "Current number of tasks on the ready list",
		},
	)

	DelayQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statekit_delay_queue_depth",
			Help: "Current number of tasks on the delay (timeout) list",
		},
	)

	TasksBlocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statekit_tasks_blocked",
			Help: "Current number of tasks in the Blocked state",
		},
	)

	// Synchronization object metrics
	SemaphoreHandoffs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statekit_semaphore_handoffs_total",
			Help: "Total number of SemGive calls that handed off directly to a waiter without touching the counter",
		},
	)

	SemaphoreWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statekit_semaphore_wait_duration_seconds",
			Help:    "Time a task spent blocked in SemTake before acquiring or timing out",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"outcome"}, // success, timeout, stopped
	)

	// Runner metrics (internal/runner)
	ActiveRunnerTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statekit_active_runner_tasks",
			Help: "Current number of kernel tasks owned by the runner pool",
		},
	)

	RunnerJobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_runner_jobs_submitted_total",
			Help: "Total number of jobs submitted to the runner pool",
		},
		[]string{"priority"},
	)

	RunnerJobRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statekit_runner_job_retries_total",
			Help: "Total number of runner job retries after a failed attempt",
		},
	)

	// Admin HTTP/WebSocket metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statekit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statekit_websocket_connections",
			Help: "Current number of WebSocket connections to the admin surface",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_websocket_messages_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	// Trace sink metrics (internal/trace, Redis Streams)
	TraceEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_trace_events_published_total",
			Help: "Total number of kernel trace events published to Redis Streams",
		},
		[]string{"kind"},
	)

	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statekit_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statekit_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)
)

// RecordTaskCreated records a task creation at the given priority.
func RecordTaskCreated(priority int) {
	TasksCreated.WithLabelValues(priorityLabel(priority)).Inc()
}

// RecordTaskTerminated records a task termination and why it ended.
func RecordTaskTerminated(reason string) {
	TasksTerminated.WithLabelValues(reason).Inc()
}

// RecordContextSwitch increments the baton hand-off counter. Called from
// a kernel.WithSwitchHook callback.
func RecordContextSwitch() {
	ContextSwitches.Inc()
}

// SetReadyQueueDepth updates the ready list depth gauge.
func SetReadyQueueDepth(depth float64) {
	ReadyQueueDepth.Set(depth)
}

// SetDelayQueueDepth updates the delay list depth gauge.
func SetDelayQueueDepth(depth float64) {
	DelayQueueDepth.Set(depth)
}

// SetTasksBlocked updates the blocked-task count gauge.
func SetTasksBlocked(count float64) {
	TasksBlocked.Set(count)
}

// RecordSemaphoreHandoff records a direct SemGive-to-waiter hand-off.
func RecordSemaphoreHandoff() {
	SemaphoreHandoffs.Inc()
}

// RecordSemaphoreWait records how long a SemTake call blocked and how it
// resolved.
func RecordSemaphoreWait(outcome string, duration float64) {
	SemaphoreWaitDuration.WithLabelValues(outcome).Observe(duration)
}

// SetActiveRunnerTasks sets the runner pool's active task-count gauge.
func SetActiveRunnerTasks(count float64) {
	ActiveRunnerTasks.Set(count)
}

// RecordRunnerJobSubmission records a job submitted to the runner pool.
func RecordRunnerJobSubmission(priority string) {
	RunnerJobsSubmitted.WithLabelValues(priority).Inc()
}

// RecordRunnerJobRetry records a runner job retry.
func RecordRunnerJobRetry() {
	RunnerJobRetries.Inc()
}

// RecordHTTPRequest records an admin HTTP request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// SetWebSocketConnections sets the admin WebSocket connection gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records an admin WebSocket message.
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}

// RecordTraceEvent records a kernel trace event published to Redis Streams.
func RecordTraceEvent(kind string) {
	TraceEventsPublished.WithLabelValues(kind).Inc()
}

// RecordRedisOperation records a Redis operation's duration.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis error.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

func priorityLabel(p int) string {
	switch {
	case p >= 192:
		return "high"
	case p >= 64:
		return "normal"
	default:
		return "low"
	}
}
