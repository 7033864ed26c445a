package gcloud

import (
	"context"
	"strings"
)

const (
	infoSubcommandConstant    = "info"
	betaComponentNameConstant = "beta"
)

// SDKInfo is the subset of `gcloud info` output the environment checks read.
type SDKInfo struct {
	Config struct {
		Account string `json:"account"`
		Project string `json:"project"`
	} `json:"config"`
	Installation struct {
		Components map[string]string `json:"components"`
	} `json:"installation"`
}

// Status reports whether the Google Cloud SDK is ready for deployments.
type Status struct {
	Configured              bool    `json:"configured" yaml:"configured"`
	SDKInstalled            bool    `json:"sdk_installed" yaml:"sdk_installed"`
	SDKInitialized          bool    `json:"sdk_initialized" yaml:"sdk_initialized"`
	BetaComponentsInstalled bool    `json:"beta_components_installed" yaml:"beta_components_installed"`
	SDKInfo                 SDKInfo `json:"-" yaml:"-"`
}

// EnvironmentStatus inspects the local SDK. A missing or broken SDK is reported
// through the returned Status rather than as an error; the remaining checks are
// then reported as unmet.
func EnvironmentStatus(executionContext context.Context, client *Client) Status {
	var info SDKInfo
	if infoError := client.JSON(executionContext, &info, infoSubcommandConstant); infoError != nil {
		return Status{}
	}

	status := Status{
		SDKInstalled:            true,
		SDKInitialized:          len(strings.TrimSpace(info.Config.Account)) > 0,
		BetaComponentsInstalled: len(strings.TrimSpace(info.Installation.Components[betaComponentNameConstant])) > 0,
		SDKInfo:                 info,
	}
	status.Configured = status.SDKInstalled && status.SDKInitialized && status.BetaComponentsInstalled
	return status
}
