package utils

import "io"

type flusher interface {
	Flush() error
}

type flushingWriter struct {
	target  io.Writer
	flusher flusher
}

// NewFlushingWriter wraps target so every Write is followed by Flush when target supports it.
func NewFlushingWriter(target io.Writer) io.Writer {
	targetFlusher, supportsFlush := target.(flusher)
	if !supportsFlush {
		return target
	}
	return &flushingWriter{target: target, flusher: targetFlusher}
}

func (writer *flushingWriter) Write(data []byte) (int, error) {
	bytesWritten, writeError := writer.target.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	return bytesWritten, writer.flusher.Flush()
}
