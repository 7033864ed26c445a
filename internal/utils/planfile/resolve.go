// Package planfile locates the plan file a command operates on.
package planfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	missingPlanErrorMessageConstant   = "no plan file found; pass a plan path or create stagehand.yaml"
	multiplePlansErrorMessageConstant = "exactly one plan path may be provided"
	missingPlanTemplateConstant       = "%w (searched %s)"
	homeDirectoryPrefixConstant       = "~"
	candidateSeparatorConstant        = ", "
)

// DefaultCandidates lists the plan file names searched in the working directory.
var DefaultCandidates = []string{"stagehand.yaml", "stagehand.yml", "stagehand.hcl"}

var (
	// ErrPlanNotFound indicates no plan path was given and none of the default candidates exist.
	ErrPlanNotFound = errors.New(missingPlanErrorMessageConstant)
	// ErrMultiplePlans indicates more than one positional plan path.
	ErrMultiplePlans = errors.New(multiplePlansErrorMessageConstant)
)

// Resolve determines the plan file: a positional argument wins, then the configured
// path, then the first default candidate present in workingDirectory.
func Resolve(positional []string, configured string, workingDirectory string) (string, error) {
	trimmedPositional := make([]string, 0, len(positional))
	for _, argument := range positional {
		if trimmed := strings.TrimSpace(argument); len(trimmed) > 0 {
			trimmedPositional = append(trimmedPositional, trimmed)
		}
	}
	if len(trimmedPositional) > 1 {
		return "", ErrMultiplePlans
	}
	if len(trimmedPositional) == 1 {
		return expandHome(trimmedPositional[0])
	}

	if trimmedConfigured := strings.TrimSpace(configured); len(trimmedConfigured) > 0 {
		return expandHome(trimmedConfigured)
	}

	searched := make([]string, 0, len(DefaultCandidates))
	for _, candidate := range DefaultCandidates {
		candidatePath := filepath.Join(workingDirectory, candidate)
		searched = append(searched, candidatePath)
		if info, statError := os.Stat(candidatePath); statError == nil && !info.IsDir() {
			return candidatePath, nil
		}
	}
	return "", fmt.Errorf(missingPlanTemplateConstant, ErrPlanNotFound, strings.Join(searched, candidateSeparatorConstant))
}

func expandHome(path string) (string, error) {
	if path != homeDirectoryPrefixConstant && !strings.HasPrefix(path, homeDirectoryPrefixConstant+string(filepath.Separator)) {
		return path, nil
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return "", homeError
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(path, homeDirectoryPrefixConstant)), nil
}
