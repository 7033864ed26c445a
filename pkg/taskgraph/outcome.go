package taskgraph

import (
	"time"

	"github.com/tyemirov/stagehand/pkg/task"
)

// State describes where a task is in its lifecycle.
type State string

// Task lifecycle states.
const (
	StatePending   State = "pending"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
	StateCached    State = "cached"
)

// Completed reports whether the state yields a usable result.
func (state State) Completed() bool {
	return state == StateSucceeded || state == StateCached
}

// TaskOutcome reports how a single task ended.
type TaskOutcome struct {
	Key         string
	BaseKey     string
	Type        task.Type
	Description string
	Version     string
	State       State
	Stage       int
	Attempts    int
	StartTime   time.Time
	Duration    time.Duration
	Error       error
}

// StageOutcome lists the task keys executed within a stage.
type StageOutcome struct {
	Index    int
	Keys     []string
	Duration time.Duration
}

// Outcome aggregates one Process pass.
type Outcome struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Results      task.Results
	TaskOutcomes []TaskOutcome
	Stages       []StageOutcome
}

// Failed reports whether any task failed or was skipped.
func (outcome Outcome) Failed() bool {
	for _, taskOutcome := range outcome.TaskOutcomes {
		if taskOutcome.State == StateFailed || taskOutcome.State == StateSkipped {
			return true
		}
	}
	return false
}

// Result returns the result produced for the provided task during the pass.
func (outcome Outcome) Result(processedTask task.Task) (any, bool) {
	if processedTask == nil {
		return nil, false
	}
	result, found := outcome.Results[processedTask.Key()]
	return result, found
}

// CountByState tallies task outcomes per state.
func (outcome Outcome) CountByState() map[State]int {
	counts := make(map[State]int)
	for _, taskOutcome := range outcome.TaskOutcomes {
		counts[taskOutcome.State]++
	}
	return counts
}
