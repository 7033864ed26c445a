package taskgraph

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	logMessagePlanResolvedConstant = "task_plan_resolved"
	logMessagePassCompleteConstant = "task_pass_complete"
	logFieldTaskCountConstant      = "task_count"
	logFieldStageCountConstant     = "stage_count"
	logFieldFailedCountConstant    = "failed_count"
	logFieldSkippedCountConstant   = "skipped_count"
	logFieldDurationConstant       = "duration"
)

// Graph schedules tasks and their transitive dependencies.
type Graph struct {
	options Options
	logger  *zap.Logger
}

// New constructs a Graph. A nil logger is replaced with a no-op logger.
func New(options Options) *Graph {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{options: options, logger: logger}
}

// Plan resolves the graph reachable from roots and returns its stages without running anything.
func (graph *Graph) Plan(executionContext context.Context, roots ...task.Task) (Plan, error) {
	stages, planError := graph.plan(executionContext, roots)
	if planError != nil {
		return Plan{}, planError
	}
	return publicPlan(stages), nil
}

// Process runs every task reachable from roots. The returned error is nil only when
// every task succeeded or was served from the cache. Resolution failures such as
// cycles are returned before any task runs.
func (graph *Graph) Process(executionContext context.Context, roots ...task.Task) (Outcome, error) {
	startTime := time.Now()

	stages, planError := graph.plan(executionContext, roots)
	if planError != nil {
		return Outcome{}, planError
	}

	runner := newStageRunner(graph.options, graph.logger)
	outcome, failures := runner.run(executionContext, stages)

	outcome.StartTime = startTime
	outcome.EndTime = time.Now()
	outcome.Duration = outcome.EndTime.Sub(startTime)

	counts := outcome.CountByState()
	graph.logger.Info(
		logMessagePassCompleteConstant,
		zap.Int(logFieldTaskCountConstant, len(outcome.TaskOutcomes)),
		zap.Int(logFieldFailedCountConstant, counts[StateFailed]),
		zap.Int(logFieldSkippedCountConstant, counts[StateSkipped]),
		zap.Duration(logFieldDurationConstant, outcome.Duration),
	)

	return outcome, newExecutionError(failures)
}

func (graph *Graph) plan(executionContext context.Context, roots []task.Task) ([]nodeStage, error) {
	resolved, resolveError := resolveGraph(executionContext, roots)
	if resolveError != nil {
		return nil, resolveError
	}

	stages, planError := planNodeStages(resolved)
	if planError != nil {
		return nil, planError
	}

	graph.logger.Debug(
		logMessagePlanResolvedConstant,
		zap.Int(logFieldTaskCountConstant, len(resolved.nodes)),
		zap.Int(logFieldStageCountConstant, len(stages)),
	)
	return stages, nil
}
