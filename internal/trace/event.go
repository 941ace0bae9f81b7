// Package trace publishes kernel lifecycle and scheduling events to Redis
// Streams, so the admin surface (internal/admin) and any other external
// observer can tail what the kernel is doing without being wired into the
// simulation process itself.
package trace

import (
	"encoding/json"
	"time"
)

// Kind identifies what a trace Event records.
type Kind string

const (
	KindContextSwitch  Kind = "context_switch"
	KindTaskCreated    Kind = "task_created"
	KindTaskStarted    Kind = "task_started"
	KindTaskTerminated Kind = "task_terminated"
	KindSemaphoreTake  Kind = "semaphore_take"
	KindSemaphoreGive  Kind = "semaphore_give"
	KindFlagGive       Kind = "flag_give"
)

// Event is one kernel occurrence, serialized as a single field ("data") in
// a Redis Streams entry rather than spread across multiple fields: the
// payload shape varies by Kind, and XAdd only accepts a flat string map.
type Event struct {
	Kind      Kind                   `json:"kind"`
	Time      time.Time              `json:"time"`
	TaskID    uint64                 `json:"task_id,omitempty"`
	TaskName  string                 `json:"task_name,omitempty"`
	FromID    uint64                 `json:"from_id,omitempty"`
	FromName  string                 `json:"from_name,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// NewEvent constructs an Event stamped with t.
func NewEvent(kind Kind, t time.Time) *Event {
	return &Event{Kind: kind, Time: t}
}

// ToJSON serializes e for transport over a Redis Streams field.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses a trace Event previously produced by ToJSON.
func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
