package taskgraph

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultRetryInitialIntervalConstant = 200 * time.Millisecond
	defaultRetryMaxIntervalConstant     = 5 * time.Second
)

// RetryPolicy configures exponential backoff for failed Process calls.
// MaxRetries counts additional attempts; zero disables retries.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Options configures a Graph.
type Options struct {
	// Concurrency caps the number of tasks running at once within a stage. Non-positive means unbounded.
	Concurrency int
	Retry       RetryPolicy
	Logger      *zap.Logger
	Reporter    Reporter
	Cache       ResultCache
}

func (policy RetryPolicy) newBackOff() backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = policy.InitialInterval
	if exponential.InitialInterval <= 0 {
		exponential.InitialInterval = defaultRetryInitialIntervalConstant
	}
	exponential.MaxInterval = policy.MaxInterval
	if exponential.MaxInterval <= 0 {
		exponential.MaxInterval = defaultRetryMaxIntervalConstant
	}
	exponential.MaxElapsedTime = 0
	exponential.Reset()
	return backoff.WithMaxRetries(exponential, policy.MaxRetries)
}
