package gcloud

import (
	"strings"
)

// DefaultRegion is used when neither the task nor the provider configuration names a region.
const DefaultRegion = "us-central1"

// ProviderConfiguration carries the Google Cloud defaults configured for a run.
type ProviderConfiguration struct {
	DefaultProject string `mapstructure:"project" yaml:"project"`
	Account        string `mapstructure:"account" yaml:"account"`
	Region         string `mapstructure:"region" yaml:"region"`
}

// ResolveProject prefers the service's own project over the provider default.
// The boolean is false when neither is set.
func ResolveProject(serviceProject string, provider ProviderConfiguration) (string, bool) {
	if trimmed := strings.TrimSpace(serviceProject); len(trimmed) > 0 {
		return trimmed, true
	}
	if trimmed := strings.TrimSpace(provider.DefaultProject); len(trimmed) > 0 {
		return trimmed, true
	}
	return "", false
}

// ResolveRegion prefers the service's region, then the provider region, then DefaultRegion.
func ResolveRegion(serviceRegion string, provider ProviderConfiguration) string {
	if trimmed := strings.TrimSpace(serviceRegion); len(trimmed) > 0 {
		return trimmed
	}
	if trimmed := strings.TrimSpace(provider.Region); len(trimmed) > 0 {
		return trimmed
	}
	return DefaultRegion
}
