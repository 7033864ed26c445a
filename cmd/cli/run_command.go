package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/internal/gcloud"
	"github.com/tyemirov/stagehand/internal/plan"
	"github.com/tyemirov/stagehand/internal/report"
	"github.com/tyemirov/stagehand/internal/results"
	"github.com/tyemirov/stagehand/internal/utils"
	flagutils "github.com/tyemirov/stagehand/internal/utils/flags"
	"github.com/tyemirov/stagehand/internal/utils/planfile"
	"github.com/tyemirov/stagehand/internal/vcs"
	"github.com/tyemirov/stagehand/pkg/taskgraph"
)

const (
	runCommandUseConstant                 = "run [plan]"
	runCommandShortDescriptionConstant    = "Run every task of a plan"
	runCommandLongDescriptionConstant     = "run resolves the plan into stages, executes the tasks with memoization and retries, and stores a run record."
	planCommandUseConstant                = "plan [plan]"
	planCommandShortDescriptionConstant   = "Print the execution stages of a plan"
	planCommandLongDescriptionConstant    = "plan resolves versions and dependencies without running any task and prints the stages that run would execute."
	runFailedMessageConstant              = "run failed"
	runFailedTemplateConstant             = "%w: %s (%d of %d tasks did not complete): %w"
	runSummaryTemplateConstant            = "run %s %s (record %s)\n"
	runRecordSaveTemplateConstant         = "save run record %s: %w"
	workingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	executorCreationErrorTemplateConstant = "unable to create shell executor: %w"
	planStageHeaderTemplateConstant       = "stage %d\n"
	planStageTaskTemplateConstant         = "  %-32s %-14s %s\n"
	planSummaryTemplateConstant           = "%d tasks in %d stages\n"
	logMessageRunStartedConstant          = "run_started"
	logMessageRunFinishedConstant         = "run_finished"
	logMessageRunRecordFailedConstant     = "run_record_save_failed"
	logFieldRunIdentifierConstant         = "run_id"
	logFieldPlanConstant                  = "plan"
	logFieldStatusConstant                = "status"
	logFieldTaskCountConstant             = "tasks"
	recordFileExtensionConstant           = ".yaml"
)

// ErrRunFailed indicates that at least one task of a run failed or was skipped.
var ErrRunFailed = errors.New(runFailedMessageConstant)

type planSession struct {
	path  string
	tasks plan.Tasks
}

func (application *Application) newRunCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   runCommandUseConstant,
		Short: runCommandShortDescriptionConstant,
		Long:  runCommandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  application.runPlan,
	}
	flagutils.BindRunFlags(command, flagutils.RunDefaults{})
	return command
}

func (application *Application) newPlanCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   planCommandUseConstant,
		Short: planCommandShortDescriptionConstant,
		Long:  planCommandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  application.printPlan,
	}
	flagutils.BindRunFlags(command, flagutils.RunDefaults{})
	return command
}

func (application *Application) runPlan(command *cobra.Command, arguments []string) error {
	runConfiguration := application.effectiveRunConfiguration(command)

	session, sessionError := application.preparePlan(command.Context(), arguments, runConfiguration)
	if sessionError != nil {
		return sessionError
	}

	cache, cacheError := results.NewFileCache(absolutePath(runConfiguration.CacheDirectory))
	if cacheError != nil {
		return cacheError
	}
	store, storeError := results.NewFileStore(absolutePath(runConfiguration.StateDirectory))
	if storeError != nil {
		return storeError
	}

	runIdentifier := results.NewRunID()
	executionContext := application.commandContextAccessor.WithRunIdentifier(command.Context(), runIdentifier)
	command.SetContext(executionContext)
	runLogger := application.logger.With(zap.String(logFieldRunIdentifierConstant, runIdentifier))

	reporter := report.NewConsoleReporter(
		utils.NewFlushingWriter(command.OutOrStdout()),
		utils.NewFlushingWriter(command.ErrOrStderr()),
		report.WithStartedEvents(runConfiguration.StartedEvents),
	)

	retries := runConfiguration.Retries
	if retries < 0 {
		retries = 0
	}
	graph := taskgraph.New(taskgraph.Options{
		Concurrency: runConfiguration.Concurrency,
		Retry: taskgraph.RetryPolicy{
			MaxRetries:      uint64(retries),
			InitialInterval: runConfiguration.RetryInitialInterval,
			MaxInterval:     runConfiguration.RetryMaxInterval,
		},
		Logger:   runLogger,
		Reporter: reporter,
		Cache:    cache,
	})

	runLogger.Info(logMessageRunStartedConstant, zap.String(logFieldPlanConstant, session.path), zap.Int(logFieldTaskCountConstant, len(session.tasks.ByName)))
	outcome, processError := graph.Process(executionContext, session.tasks.Roots...)

	run := results.NewRun(runIdentifier, session.path, outcome, processError)
	saveError := store.Save(executionContext, run)
	if saveError != nil {
		runLogger.Error(logMessageRunRecordFailedConstant, zap.Error(saveError))
	}
	runLogger.Info(logMessageRunFinishedConstant, zap.String(logFieldStatusConstant, run.Status))

	reporter.PrintSummary()
	fmt.Fprintf(command.OutOrStdout(), runSummaryTemplateConstant, runIdentifier, run.Status, filepath.Join(absolutePath(runConfiguration.StateDirectory), runIdentifier+recordFileExtensionConstant))

	if processError != nil {
		if len(outcome.TaskOutcomes) == 0 {
			return processError
		}
		counts := outcome.CountByState()
		incomplete := counts[taskgraph.StateFailed] + counts[taskgraph.StateSkipped]
		return fmt.Errorf(runFailedTemplateConstant, ErrRunFailed, runIdentifier, incomplete, len(outcome.TaskOutcomes), processError)
	}
	if saveError != nil {
		return fmt.Errorf(runRecordSaveTemplateConstant, runIdentifier, saveError)
	}
	return nil
}

func (application *Application) printPlan(command *cobra.Command, arguments []string) error {
	runConfiguration := application.effectiveRunConfiguration(command)

	session, sessionError := application.preparePlan(command.Context(), arguments, runConfiguration)
	if sessionError != nil {
		return sessionError
	}

	graph := taskgraph.New(taskgraph.Options{Logger: application.logger})
	executionPlan, planError := graph.Plan(command.Context(), session.tasks.Roots...)
	if planError != nil {
		return planError
	}

	writePlan(command.OutOrStdout(), executionPlan)
	return nil
}

func writePlan(output io.Writer, executionPlan taskgraph.Plan) {
	for _, stage := range executionPlan.Stages {
		fmt.Fprintf(output, planStageHeaderTemplateConstant, stage.Index+1)
		for _, stageTask := range stage.Tasks {
			fmt.Fprintf(output, planStageTaskTemplateConstant, stageTask.BaseKey(), stageTask.Version().String(), stageTask.Description())
		}
	}
	fmt.Fprintf(output, planSummaryTemplateConstant, executionPlan.TaskCount(), len(executionPlan.Stages))
}

// preparePlan locates, loads, and builds the plan. Task paths resolve against the
// plan file's directory.
func (application *Application) preparePlan(executionContext context.Context, arguments []string, runConfiguration RunConfiguration) (planSession, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return planSession{}, fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
	}

	planPath, resolveError := planfile.Resolve(arguments, runConfiguration.Plan, workingDirectory)
	if resolveError != nil {
		return planSession{}, resolveError
	}
	planPath = absolutePath(planPath)

	definition, loadError := plan.NewLoader().Load(planPath)
	if loadError != nil {
		return planSession{}, loadError
	}

	shellExecutor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, application.humanReadableLoggingEnabled())
	if executorError != nil {
		return planSession{}, fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	versionProvider, providerError := vcs.NewProvider(
		runConfiguration.VersionProvider,
		shellExecutor,
		absolutePath(runConfiguration.CacheDirectory),
		absolutePath(runConfiguration.StateDirectory),
	)
	if providerError != nil {
		return planSession{}, providerError
	}

	gcloudClient, clientError := gcloud.NewClient(shellExecutor, application.configuration.GCloud.DefaultProject, application.configuration.GCloud.Account)
	if clientError != nil {
		return planSession{}, clientError
	}

	builder, builderError := plan.NewBuilder(plan.BuilderDependencies{
		VersionProvider: versionProvider,
		ShellExecutor:   shellExecutor,
		GCloudClient:    gcloudClient,
		Provider:        application.configuration.GCloud,
		BaseDirectory:   filepath.Dir(planPath),
		Logger:          application.logger,
	})
	if builderError != nil {
		return planSession{}, builderError
	}

	builtTasks, buildError := builder.Build(executionContext, definition)
	if buildError != nil {
		return planSession{}, buildError
	}

	return planSession{path: planPath, tasks: builtTasks}, nil
}

// effectiveRunConfiguration layers explicitly given run flags over the configuration.
func (application *Application) effectiveRunConfiguration(command *cobra.Command) RunConfiguration {
	runConfiguration := application.configuration.Run

	runFlags, available := flagutils.ResolveRunFlags(command)
	if !available {
		return runConfiguration
	}

	if runFlags.ConcurrencySet {
		runConfiguration.Concurrency = runFlags.Concurrency
	}
	if runFlags.RetriesSet {
		runConfiguration.Retries = runFlags.Retries
	}
	if runFlags.VersionProviderSet {
		runConfiguration.VersionProvider = runFlags.VersionProvider
	}
	if runFlags.CacheDirectorySet {
		runConfiguration.CacheDirectory = runFlags.CacheDirectory
	}
	if runFlags.StateDirectorySet {
		runConfiguration.StateDirectory = runFlags.StateDirectory
	}
	return runConfiguration
}

func absolutePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if len(trimmed) == 0 {
		return trimmed
	}
	resolved, resolveError := filepath.Abs(trimmed)
	if resolveError != nil {
		return trimmed
	}
	return resolved
}
