package utils_test

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stagehand/internal/utils"
)

type failingFlushWriter struct {
	bytes.Buffer
	flushCount int
}

func (writer *failingFlushWriter) Flush() error {
	writer.flushCount++
	return errors.New("flush failed")
}

func TestFlushingWriterDeliversEachEventLine(testInstance *testing.T) {
	destination := &bytes.Buffer{}
	buffered := bufio.NewWriterSize(destination, 4096)
	writer := utils.NewFlushingWriter(buffered)

	fmt.Fprintln(writer, "10:00:00 INFO  task_succeeded command compile (duration=1.5s)")
	require.Equal(testInstance, "10:00:00 INFO  task_succeeded command compile (duration=1.5s)\n", destination.String())

	fmt.Fprintln(writer, "10:00:01 INFO  task_cached    command notify")
	require.Equal(testInstance, 0, buffered.Buffered())
	require.Contains(testInstance, destination.String(), "task_cached")
}

func TestFlushingWriterReportsFlushFailures(testInstance *testing.T) {
	target := &failingFlushWriter{}
	writer := utils.NewFlushingWriter(target)

	bytesWritten, writeError := writer.Write([]byte("task_failed"))
	require.Equal(testInstance, len("task_failed"), bytesWritten)
	require.EqualError(testInstance, writeError, "flush failed")
	require.Equal(testInstance, "task_failed", target.String())
	require.Equal(testInstance, 1, target.flushCount)
}

func TestFlushingWriterReturnsPlainWritersUnchanged(testInstance *testing.T) {
	destination := &bytes.Buffer{}
	require.Same(testInstance, destination, utils.NewFlushingWriter(destination))
}
