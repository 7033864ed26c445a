package taskgraph

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	logMessageStageCompleteConstant   = "task_stage_complete"
	logMessageCacheLookupConstant     = "task_cache_lookup_failed"
	logMessageCacheStoreConstant      = "task_cache_store_failed"
	logFieldStageIndexConstant        = "stage_index"
	logFieldTaskKeyConstant           = "task_key"
	logFieldTaskDescriptionConstant   = "task_description"
	logFieldAttemptConstant           = "attempt"
	logFieldRetryDelayConstant        = "retry_delay"
	unboundedConcurrencyLimitConstant = -1
)

type stageRunner struct {
	options Options
	logger  *zap.Logger

	stateMutex   sync.Mutex
	states       map[string]State
	results      task.Results
	outcomes     map[string]TaskOutcome
	memoVersions map[string]task.Version
}

func newStageRunner(options Options, logger *zap.Logger) *stageRunner {
	return &stageRunner{
		options:      options,
		logger:       logger,
		states:       make(map[string]State),
		results:      make(task.Results),
		outcomes:     make(map[string]TaskOutcome),
		memoVersions: make(map[string]task.Version),
	}
}

func (runner *stageRunner) run(executionContext context.Context, stages []nodeStage) (Outcome, []TaskFailedError) {
	outcome := Outcome{
		Results:      make(task.Results),
		TaskOutcomes: make([]TaskOutcome, 0),
		Stages:       make([]StageOutcome, 0, len(stages)),
	}

	for _, stage := range stages {
		for _, node := range stage.nodes {
			runner.states[node.key] = StatePending
		}
	}
	runner.memoVersions = memoVersions(stages)

	limit := runner.options.Concurrency
	if limit <= 0 {
		limit = unboundedConcurrencyLimitConstant
	}

	for _, stage := range stages {
		stageStart := time.Now()

		runner.stateMutex.Lock()
		for _, node := range stage.nodes {
			runner.states[node.key] = StateReady
		}
		runner.stateMutex.Unlock()

		group := new(errgroup.Group)
		group.SetLimit(limit)
		for _, node := range stage.nodes {
			stageNode := node
			stageIndex := stage.index
			group.Go(func() error {
				runner.runNode(executionContext, stageIndex, stageNode)
				return nil
			})
		}
		_ = group.Wait()

		stageDuration := time.Since(stageStart)
		keys := make([]string, 0, len(stage.nodes))
		for _, node := range stage.nodes {
			keys = append(keys, node.key)
		}
		outcome.Stages = append(outcome.Stages, StageOutcome{Index: stage.index, Keys: keys, Duration: stageDuration})

		if runner.options.Reporter != nil {
			runner.options.Reporter.RecordStageDuration(stage.index, stageDuration)
		}
		runner.logger.Info(
			logMessageStageCompleteConstant,
			zap.Int(logFieldStageIndexConstant, stage.index),
			zap.Duration(logFieldDurationConstant, stageDuration),
		)
	}

	failures := make([]TaskFailedError, 0)
	for _, stage := range stages {
		for _, node := range stage.nodes {
			taskOutcome := runner.outcomes[node.key]
			outcome.TaskOutcomes = append(outcome.TaskOutcomes, taskOutcome)
			if taskOutcome.State.Completed() {
				outcome.Results[node.key] = runner.results[node.key]
			}
			if taskOutcome.State == StateFailed {
				failures = append(failures, TaskFailedError{Key: node.key, Cause: taskOutcome.Error})
			}
		}
	}

	return outcome, failures
}

func (runner *stageRunner) runNode(executionContext context.Context, stageIndex int, node *graphNode) {
	taskOutcome := TaskOutcome{
		Key:         node.key,
		BaseKey:     node.task.BaseKey(),
		Type:        node.task.Type(),
		Description: node.task.Description(),
		Stage:       stageIndex,
		StartTime:   time.Now(),
	}
	if version := node.task.Version(); version != nil {
		taskOutcome.Version = version.String()
	}

	dependencyResults, blockingDependency := runner.collectDependencyResults(node)
	if len(blockingDependency) > 0 {
		taskOutcome.State = StateSkipped
		taskOutcome.Error = dependencyFailedError(blockingDependency)
		runner.finish(taskOutcome, nil)
		runner.report(EventTaskSkipped, taskOutcome, 0)
		return
	}

	if contextError := executionContext.Err(); contextError != nil {
		taskOutcome.State = StateFailed
		taskOutcome.Error = contextError
		runner.finish(taskOutcome, nil)
		runner.report(EventTaskFailed, taskOutcome, 0)
		return
	}

	if cachedResult, cached := runner.lookupCache(executionContext, node); cached {
		taskOutcome.State = StateCached
		taskOutcome.Duration = time.Since(taskOutcome.StartTime)
		runner.finish(taskOutcome, cachedResult)
		runner.report(EventTaskCached, taskOutcome, 0)
		return
	}

	runner.setState(node.key, StateRunning)
	runner.report(EventTaskStarted, taskOutcome, 1)

	result, attempts, processError := runner.processWithRetry(executionContext, stageIndex, node, dependencyResults)
	taskOutcome.Attempts = attempts
	taskOutcome.Duration = time.Since(taskOutcome.StartTime)
	if processError != nil {
		taskOutcome.State = StateFailed
		taskOutcome.Error = processError
		runner.finish(taskOutcome, nil)
		runner.report(EventTaskFailed, taskOutcome, attempts)
		return
	}

	taskOutcome.State = StateSucceeded
	runner.storeCache(executionContext, node, result)
	runner.finish(taskOutcome, result)
	runner.report(EventTaskSucceeded, taskOutcome, attempts)
}

// collectDependencyResults returns exactly the direct dependency results, or the key
// of the first dependency that did not complete.
func (runner *stageRunner) collectDependencyResults(node *graphNode) (task.Results, string) {
	runner.stateMutex.Lock()
	defer runner.stateMutex.Unlock()

	dependencyResults := make(task.Results, len(node.dependencies))
	for _, dependency := range node.dependencies {
		if !runner.states[dependency.key].Completed() {
			return nil, dependency.key
		}
		dependencyResults[dependency.key] = runner.results[dependency.key]
	}
	return dependencyResults, ""
}

func (runner *stageRunner) processWithRetry(executionContext context.Context, stageIndex int, node *graphNode, dependencyResults task.Results) (any, int, error) {
	var (
		result   any
		attempts int
	)

	operation := func() error {
		attempts++
		attemptResult, attemptError := node.task.Process(executionContext, copyResults(dependencyResults))
		if attemptError != nil {
			if errors.Is(attemptError, task.ErrDefinition) || executionContext.Err() != nil {
				return backoff.Permanent(attemptError)
			}
			return attemptError
		}
		result = attemptResult
		return nil
	}

	notify := func(attemptError error, delay time.Duration) {
		runner.logger.Warn(
			string(EventTaskRetrying),
			zap.String(logFieldTaskKeyConstant, node.key),
			zap.Int(logFieldAttemptConstant, attempts),
			zap.Duration(logFieldRetryDelayConstant, delay),
			zap.Error(attemptError),
		)
		if runner.options.Reporter != nil {
			runner.options.Reporter.RecordTaskEvent(TaskEvent{
				Kind:        EventTaskRetrying,
				Timestamp:   time.Now(),
				Key:         node.key,
				BaseKey:     node.task.BaseKey(),
				Description: node.task.Description(),
				Stage:       stageIndex,
				Attempt:     attempts,
				Error:       attemptError,
			})
		}
	}

	retryPolicy := backoff.WithContext(runner.options.Retry.newBackOff(), executionContext)
	retryError := backoff.RetryNotify(operation, retryPolicy, notify)
	if retryError != nil {
		return nil, attempts, retryError
	}
	return result, attempts, nil
}

func (runner *stageRunner) lookupCache(executionContext context.Context, node *graphNode) (any, bool) {
	if !runner.cacheable(node) {
		return nil, false
	}
	cachedResult, found, lookupError := runner.options.Cache.Lookup(executionContext, node.task.BaseKey(), runner.memoVersions[node.key])
	if lookupError != nil {
		runner.logger.Warn(logMessageCacheLookupConstant, zap.String(logFieldTaskKeyConstant, node.key), zap.Error(lookupError))
		return nil, false
	}
	return cachedResult, found
}

func (runner *stageRunner) storeCache(executionContext context.Context, node *graphNode, result any) {
	if !runner.cacheable(node) {
		return
	}
	if storeError := runner.options.Cache.Store(executionContext, node.task.BaseKey(), runner.memoVersions[node.key], result); storeError != nil {
		runner.logger.Warn(logMessageCacheStoreConstant, zap.String(logFieldTaskKeyConstant, node.key), zap.Error(storeError))
	}
}

func (runner *stageRunner) cacheable(node *graphNode) bool {
	if runner.options.Cache == nil || runner.memoVersions[node.key] == nil {
		return false
	}
	cacheableTask, implementsCacheable := node.task.(task.Cacheable)
	return implementsCacheable && cacheableTask.Cacheable()
}

func (runner *stageRunner) setState(key string, state State) {
	runner.stateMutex.Lock()
	runner.states[key] = state
	runner.stateMutex.Unlock()
}

func (runner *stageRunner) finish(taskOutcome TaskOutcome, result any) {
	runner.stateMutex.Lock()
	defer runner.stateMutex.Unlock()

	runner.states[taskOutcome.Key] = taskOutcome.State
	runner.outcomes[taskOutcome.Key] = taskOutcome
	if taskOutcome.State.Completed() {
		runner.results[taskOutcome.Key] = result
	}
}

func (runner *stageRunner) report(kind EventKind, taskOutcome TaskOutcome, attempt int) {
	fields := []zap.Field{
		zap.String(logFieldTaskKeyConstant, taskOutcome.Key),
		zap.String(logFieldTaskDescriptionConstant, taskOutcome.Description),
		zap.Int(logFieldStageIndexConstant, taskOutcome.Stage),
	}
	switch kind {
	case EventTaskFailed:
		runner.logger.Error(string(kind), append(fields, zap.Int(logFieldAttemptConstant, attempt), zap.Error(taskOutcome.Error))...)
	case EventTaskSkipped:
		runner.logger.Warn(string(kind), append(fields, zap.Error(taskOutcome.Error))...)
	case EventTaskStarted:
		runner.logger.Debug(string(kind), fields...)
	default:
		runner.logger.Info(string(kind), append(fields, zap.Duration(logFieldDurationConstant, taskOutcome.Duration))...)
	}

	if runner.options.Reporter == nil {
		return
	}
	runner.options.Reporter.RecordTaskEvent(TaskEvent{
		Kind:        kind,
		Timestamp:   time.Now(),
		Key:         taskOutcome.Key,
		BaseKey:     taskOutcome.BaseKey,
		Description: taskOutcome.Description,
		Stage:       taskOutcome.Stage,
		Attempt:     attempt,
		Duration:    taskOutcome.Duration,
		Error:       taskOutcome.Error,
	})
}

func copyResults(results task.Results) task.Results {
	copied := make(task.Results, len(results))
	for key, value := range results {
		copied[key] = value
	}
	return copied
}
