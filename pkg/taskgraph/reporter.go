package taskgraph

import (
	"time"
)

// EventKind identifies a task lifecycle transition.
type EventKind string

// Lifecycle events emitted to a Reporter.
const (
	EventTaskStarted   EventKind = "task_started"
	EventTaskRetrying  EventKind = "task_retrying"
	EventTaskSucceeded EventKind = "task_succeeded"
	EventTaskFailed    EventKind = "task_failed"
	EventTaskSkipped   EventKind = "task_skipped"
	EventTaskCached    EventKind = "task_cached"
)

// TaskEvent describes a lifecycle transition of one task.
type TaskEvent struct {
	Kind        EventKind
	Timestamp   time.Time
	Key         string
	BaseKey     string
	Description string
	Stage       int
	Attempt     int
	Duration    time.Duration
	Error       error
}

// Reporter receives progress notifications. Implementations must be safe for concurrent use.
type Reporter interface {
	RecordTaskEvent(event TaskEvent)
	RecordStageDuration(stageIndex int, duration time.Duration)
}
