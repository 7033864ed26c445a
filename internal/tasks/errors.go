package tasks

import (
	"errors"
)

var (
	// ErrShellExecutorNotConfigured indicates a command or build task constructed without a shell executor.
	ErrShellExecutorNotConfigured = errors.New("shell executor not configured")
	// ErrGCloudClientNotConfigured indicates a deploy task constructed without a gcloud client.
	ErrGCloudClientNotConfigured = errors.New("gcloud client not configured")
)
