package flags

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/stagehand/internal/utils"
)

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

func IntFlag(command *cobra.Command, name string) (int, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return 0, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetInt(name)
	if err != nil {
		return 0, false, err
	}
	return value, flag.Changed, nil
}

func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, err := flagSet.GetString(name)
	if err != nil {
		return "", false, err
	}
	return value, flag.Changed, nil
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}

	return nil, nil
}

// CollectRunFlags inspects the command's flags to produce run flag values.
func CollectRunFlags(command *cobra.Command) utils.RunFlags {
	runFlags := utils.RunFlags{}
	if command == nil {
		return runFlags
	}

	if concurrencyValue, concurrencyChanged, concurrencyError := IntFlag(command, ConcurrencyFlagName); concurrencyError == nil {
		runFlags.Concurrency = concurrencyValue
		runFlags.ConcurrencySet = concurrencyChanged
	}

	if retriesValue, retriesChanged, retriesError := IntFlag(command, RetriesFlagName); retriesError == nil {
		runFlags.Retries = retriesValue
		runFlags.RetriesSet = retriesChanged
	}

	if providerValue, providerChanged, providerError := StringFlag(command, VersionProviderFlagName); providerError == nil {
		runFlags.VersionProvider = strings.TrimSpace(providerValue)
		runFlags.VersionProviderSet = providerChanged
	}

	if cacheValue, cacheChanged, cacheError := StringFlag(command, CacheDirectoryFlagName); cacheError == nil {
		runFlags.CacheDirectory = strings.TrimSpace(cacheValue)
		runFlags.CacheDirectorySet = cacheChanged
	}

	if stateValue, stateChanged, stateError := StringFlag(command, StateDirectoryFlagName); stateError == nil {
		runFlags.StateDirectory = strings.TrimSpace(stateValue)
		runFlags.StateDirectorySet = stateChanged
	}

	return runFlags
}

// ResolveRunFlags returns run flags from context or flag values, indicating whether any overrides are provided.
func ResolveRunFlags(command *cobra.Command) (utils.RunFlags, bool) {
	contextAccessor := utils.NewCommandContextAccessor()
	if command != nil {
		if runFlags, available := contextAccessor.RunFlags(command.Context()); available {
			return runFlags, true
		}
	}

	runFlags := CollectRunFlags(command)
	available := runFlags.ConcurrencySet || runFlags.RetriesSet || runFlags.VersionProviderSet || runFlags.CacheDirectorySet || runFlags.StateDirectorySet
	return runFlags, available
}
