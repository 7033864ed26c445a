package results

import (
	"time"

	"github.com/rs/xid"

	"github.com/tyemirov/stagehand/pkg/taskgraph"
)

// Run statuses.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// TaskRecord is the persisted form of a taskgraph.TaskOutcome.
type TaskRecord struct {
	Key                  string `yaml:"key" json:"key"`
	BaseKey              string `yaml:"base_key" json:"base_key"`
	Type                 string `yaml:"type" json:"type"`
	Description          string `yaml:"description" json:"description"`
	Version              string `yaml:"version" json:"version"`
	State                string `yaml:"state" json:"state"`
	Stage                int    `yaml:"stage" json:"stage"`
	Attempts             int    `yaml:"attempts" json:"attempts"`
	DurationMilliseconds int64  `yaml:"duration_ms" json:"duration_ms"`
	Error                string `yaml:"error,omitempty" json:"error,omitempty"`
	Result               any    `yaml:"result,omitempty" json:"result,omitempty"`
}

// Run records one execution of a plan.
type Run struct {
	ID         string       `yaml:"id" json:"id"`
	Plan       string       `yaml:"plan" json:"plan"`
	Status     string       `yaml:"status" json:"status"`
	StartedAt  time.Time    `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time    `yaml:"finished_at" json:"finished_at"`
	Error      string       `yaml:"error,omitempty" json:"error,omitempty"`
	Tasks      []TaskRecord `yaml:"tasks" json:"tasks"`
}

// NewRunID returns a globally unique, time-sortable run identifier.
func NewRunID() string {
	return xid.New().String()
}

// NewRun converts a graph outcome into a Run record.
func NewRun(runID string, planPath string, outcome taskgraph.Outcome, runError error) Run {
	run := Run{
		ID:         runID,
		Plan:       planPath,
		Status:     RunStatusSucceeded,
		StartedAt:  outcome.StartTime,
		FinishedAt: outcome.EndTime,
		Tasks:      make([]TaskRecord, 0, len(outcome.TaskOutcomes)),
	}
	if runError != nil || outcome.Failed() {
		run.Status = RunStatusFailed
	}
	if runError != nil {
		run.Error = runError.Error()
	}

	for _, taskOutcome := range outcome.TaskOutcomes {
		record := TaskRecord{
			Key:                  taskOutcome.Key,
			BaseKey:              taskOutcome.BaseKey,
			Type:                 taskOutcome.Type.String(),
			Description:          taskOutcome.Description,
			Version:              taskOutcome.Version,
			State:                string(taskOutcome.State),
			Stage:                taskOutcome.Stage,
			Attempts:             taskOutcome.Attempts,
			DurationMilliseconds: taskOutcome.Duration.Milliseconds(),
		}
		if taskOutcome.Error != nil {
			record.Error = taskOutcome.Error.Error()
		}
		if result, found := outcome.Results[taskOutcome.Key]; found {
			record.Result = result
		}
		run.Tasks = append(run.Tasks, record)
	}
	return run
}
