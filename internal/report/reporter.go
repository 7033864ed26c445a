package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tyemirov/stagehand/pkg/taskgraph"
)

const (
	defaultLevelFieldWidthConstant = 5
	defaultEventFieldWidthConstant = 14
	defaultTimestampLayoutConstant = "15:04:05"
	zeroDurationHumanConstant      = "0s"
)

// EventLevel describes the severity of a reported task event.
type EventLevel string

// Supported event levels.
const (
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// SummaryData captures aggregated reporter metrics suitable for telemetry export.
type SummaryData struct {
	TotalTasks           int                             `json:"total_tasks"`
	EventCounts          map[string]int                  `json:"event_counts"`
	LevelCounts          map[EventLevel]int              `json:"level_counts"`
	DurationHuman        string                          `json:"duration_human"`
	DurationMilliseconds int64                           `json:"duration_ms"`
	StageDurations       map[string]StageDurationSummary `json:"stage_durations"`
}

// StageDurationSummary captures aggregated timing metrics for a stage.
type StageDurationSummary struct {
	Count                       int   `json:"count"`
	TotalDurationMilliseconds   int64 `json:"total_duration_ms"`
	AverageDurationMilliseconds int64 `json:"average_duration_ms"`
}

// ReporterOption customises ConsoleReporter behaviour.
type ReporterOption func(*ConsoleReporter)

// WithNowProvider overrides the time source used for timestamps and duration calculations.
func WithNowProvider(provider func() time.Time) ReporterOption {
	return func(reporter *ConsoleReporter) {
		if provider != nil {
			reporter.now = provider
			reporter.startTime = provider()
		}
	}
}

// WithStartedEvents toggles console lines for task_started events.
func WithStartedEvents(enabled bool) ReporterOption {
	return func(reporter *ConsoleReporter) {
		reporter.includeStartedEvents = enabled
	}
}

// ConsoleReporter prints task lifecycle events as aligned console lines and
// aggregates counts and stage timings for the run summary.
type ConsoleReporter struct {
	outputWriter         io.Writer
	errorWriter          io.Writer
	includeStartedEvents bool
	now                  func() time.Time

	mutex          sync.Mutex
	startTime      time.Time
	eventCounts    map[string]int
	levelCounts    map[EventLevel]int
	seenTasks      map[string]struct{}
	stageDurations map[string]*stageDurationAccumulator
}

type stageDurationAccumulator struct {
	count int
	total time.Duration
}

// NewConsoleReporter constructs a ConsoleReporter writing to the provided sinks.
func NewConsoleReporter(output io.Writer, errors io.Writer, options ...ReporterOption) *ConsoleReporter {
	if output == nil {
		output = os.Stdout
	}
	if errors == nil {
		errors = output
	}

	reporter := &ConsoleReporter{
		outputWriter:         output,
		errorWriter:          errors,
		includeStartedEvents: true,
		now:                  time.Now,
		startTime:            time.Now(),
		eventCounts:          make(map[string]int),
		levelCounts:          make(map[EventLevel]int),
		seenTasks:            make(map[string]struct{}),
		stageDurations:       make(map[string]*stageDurationAccumulator),
	}

	for _, option := range options {
		option(reporter)
	}

	return reporter
}

// RecordTaskEvent counts the event and prints it.
func (reporter *ConsoleReporter) RecordTaskEvent(event taskgraph.TaskEvent) {
	if reporter == nil {
		return
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = reporter.now()
	}
	code := string(event.Kind)
	level := levelForEvent(event.Kind)

	taskIdentity := event.Key
	if len(taskIdentity) == 0 {
		taskIdentity = event.BaseKey
	}
	if len(taskIdentity) > 0 {
		reporter.seenTasks[taskIdentity] = struct{}{}
	}
	reporter.eventCounts[code]++
	reporter.levelCounts[level]++

	if event.Kind == taskgraph.EventTaskStarted && !reporter.includeStartedEvents {
		return
	}

	writer := reporter.outputWriter
	if level == EventLevelError {
		writer = reporter.errorWriter
	}
	fmt.Fprintln(writer, formatEventLine(timestamp, level, code, event))
}

// RecordStageDuration aggregates timing information for a stage.
func (reporter *ConsoleReporter) RecordStageDuration(stageIndex int, duration time.Duration) {
	if reporter == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}

	stageName := strconv.Itoa(stageIndex)

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	accumulator, exists := reporter.stageDurations[stageName]
	if !exists {
		accumulator = &stageDurationAccumulator{}
		reporter.stageDurations[stageName] = accumulator
	}
	accumulator.count++
	accumulator.total += duration
}

// SummaryData produces a serializable snapshot of reporter metrics.
func (reporter *ConsoleReporter) SummaryData() SummaryData {
	if reporter == nil {
		return SummaryData{
			EventCounts:    make(map[string]int),
			LevelCounts:    make(map[EventLevel]int),
			StageDurations: make(map[string]StageDurationSummary),
			DurationHuman:  zeroDurationHumanConstant,
		}
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	duration := reporter.now().Sub(reporter.startTime)
	if duration < 0 {
		duration = 0
	}

	eventCounts := make(map[string]int, len(reporter.eventCounts))
	for key, value := range reporter.eventCounts {
		eventCounts[key] = value
	}
	levelCounts := make(map[EventLevel]int, len(reporter.levelCounts))
	for key, value := range reporter.levelCounts {
		levelCounts[key] = value
	}

	stageDurations := make(map[string]StageDurationSummary, len(reporter.stageDurations))
	for name, accumulator := range reporter.stageDurations {
		if accumulator.count == 0 {
			continue
		}
		stageDurations[name] = StageDurationSummary{
			Count:                       accumulator.count,
			TotalDurationMilliseconds:   durationMilliseconds(accumulator.total),
			AverageDurationMilliseconds: durationMilliseconds(accumulator.total / time.Duration(accumulator.count)),
		}
	}

	return SummaryData{
		TotalTasks:           len(reporter.seenTasks),
		EventCounts:          eventCounts,
		LevelCounts:          levelCounts,
		DurationHuman:        formatDuration(duration),
		DurationMilliseconds: durationMilliseconds(duration),
		StageDurations:       stageDurations,
	}
}

// PrintSummary writes the summary line to the primary output writer.
func (reporter *ConsoleReporter) PrintSummary() {
	if reporter == nil {
		return
	}
	summary := RenderSummaryLine(reporter.SummaryData())

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	fmt.Fprintln(reporter.outputWriter, summary)
}

func levelForEvent(kind taskgraph.EventKind) EventLevel {
	switch kind {
	case taskgraph.EventTaskFailed:
		return EventLevelError
	case taskgraph.EventTaskRetrying, taskgraph.EventTaskSkipped:
		return EventLevelWarn
	default:
		return EventLevelInfo
	}
}

func formatEventLine(timestamp time.Time, level EventLevel, code string, event taskgraph.TaskEvent) string {
	levelField := fmt.Sprintf("%-*s", defaultLevelFieldWidthConstant, string(level))
	codeField := fmt.Sprintf("%-*s", defaultEventFieldWidthConstant, code)

	subject := strings.TrimSpace(event.Description)
	if len(subject) == 0 {
		subject = event.BaseKey
	}

	details := make([]string, 0, 3)
	if event.Kind == taskgraph.EventTaskRetrying || event.Attempt > 1 {
		details = append(details, fmt.Sprintf("attempt=%d", event.Attempt))
	}
	if event.Duration > 0 {
		details = append(details, fmt.Sprintf("duration=%s", formatDuration(event.Duration)))
	}
	if event.Error != nil {
		details = append(details, fmt.Sprintf("error=%q", event.Error.Error()))
	}

	line := fmt.Sprintf("%s %s %s %s", timestamp.Format(defaultTimestampLayoutConstant), levelField, codeField, subject)
	if len(details) > 0 {
		line = line + " (" + strings.Join(details, " ") + ")"
	}
	return line
}

// RenderSummaryLine returns the summary line printed after a run.
func RenderSummaryLine(data SummaryData) string {
	parts := []string{fmt.Sprintf("Summary: total.tasks=%d", data.TotalTasks)}

	keys := make([]string, 0, len(data.EventCounts))
	for key := range data.EventCounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, data.EventCounts[key]))
	}

	parts = append(parts, fmt.Sprintf("%s=%d", EventLevelWarn, data.LevelCounts[EventLevelWarn]))
	parts = append(parts, fmt.Sprintf("%s=%d", EventLevelError, data.LevelCounts[EventLevelError]))

	durationHuman := strings.TrimSpace(data.DurationHuman)
	if durationHuman == "" {
		durationHuman = zeroDurationHumanConstant
	}
	parts = append(parts, fmt.Sprintf("duration_human=%s", durationHuman))
	parts = append(parts, fmt.Sprintf("duration_ms=%d", data.DurationMilliseconds))

	return strings.Join(parts, " ")
}

func formatDuration(value time.Duration) string {
	if value < 0 {
		value = 0
	}
	rounded := value.Round(time.Millisecond)
	if rounded == 0 && value > 0 {
		rounded = time.Millisecond
	}
	return rounded.String()
}

func durationMilliseconds(value time.Duration) int64 {
	if value < 0 {
		value = 0
	}
	rounded := value.Round(time.Millisecond)
	if rounded == 0 && value > 0 {
		rounded = time.Millisecond
	}
	return rounded.Milliseconds()
}
