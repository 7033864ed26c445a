// Package flags provides helpers for binding standardized run flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// ConcurrencyFlagName caps the number of tasks running at once.
	ConcurrencyFlagName = "concurrency"
	// ConcurrencyFlagUsage describes the concurrency flag.
	ConcurrencyFlagUsage = "Maximum number of tasks running at once within a stage (0 means unbounded)"
	// RetriesFlagName sets how many times a failed task is retried.
	RetriesFlagName = "retries"
	// RetriesFlagUsage describes the retries flag.
	RetriesFlagUsage = "Number of additional attempts for a failed task"
	// VersionProviderFlagName selects the version provider.
	VersionProviderFlagName = "vcs"
	// VersionProviderFlagUsage describes the version provider flag.
	VersionProviderFlagUsage = "Version provider used to derive task versions (git or content)"
	// CacheDirectoryFlagName points at the persistent result cache.
	CacheDirectoryFlagName = "cache-dir"
	// CacheDirectoryFlagUsage describes the cache directory flag.
	CacheDirectoryFlagUsage = "Directory holding memoized task results"
	// StateDirectoryFlagName points at the run record store.
	StateDirectoryFlagName = "state-dir"
	// StateDirectoryFlagUsage describes the state directory flag.
	StateDirectoryFlagUsage = "Directory holding run records"
)

// RunDefaults describes default flag values for run commands.
type RunDefaults struct {
	Concurrency     int
	Retries         int
	VersionProvider string
	CacheDirectory  string
	StateDirectory  string
}

// BindRunFlags attaches the run flags to the provided command's local flag set.
func BindRunFlags(command *cobra.Command, defaults RunDefaults) {
	if command == nil {
		return
	}

	flagSet := command.Flags()
	bindIntFlag(flagSet, ConcurrencyFlagName, defaults.Concurrency, ConcurrencyFlagUsage)
	bindIntFlag(flagSet, RetriesFlagName, defaults.Retries, RetriesFlagUsage)
	bindStringFlag(flagSet, VersionProviderFlagName, defaults.VersionProvider, VersionProviderFlagUsage)
	bindStringFlag(flagSet, CacheDirectoryFlagName, defaults.CacheDirectory, CacheDirectoryFlagUsage)
	bindStringFlag(flagSet, StateDirectoryFlagName, defaults.StateDirectory, StateDirectoryFlagUsage)
}

func bindIntFlag(flagSet *pflag.FlagSet, name string, defaultValue int, usage string) {
	if flagSet.Lookup(name) != nil {
		return
	}
	flagSet.Int(name, defaultValue, usage)
}

func bindStringFlag(flagSet *pflag.FlagSet, name string, defaultValue string, usage string) {
	if flagSet.Lookup(name) != nil {
		return
	}
	flagSet.String(name, defaultValue, usage)
}
