package gcloud

import (
	"context"

	"go.uber.org/zap"
)

const (
	sdkNotInstalledMessageConstant          = "Google Cloud SDK is not installed. Please visit https://cloud.google.com/sdk/downloads for installation instructions."
	installingBetaComponentsMessageConstant = "Installing gcloud SDK beta components..."
	initializingSDKMessageConstant          = "Initializing SDK..."
	logFieldSectionConstant                 = "section"
	logSectionConstant                      = "google-cloud"
	componentsSubcommandConstant            = "components"
	componentsUpdateSubcommandConstant      = "update"
	componentsInstallSubcommandConstant     = "install"
	initSubcommandConstant                  = "init"
	quietFlagConstant                       = "--quiet"
)

// ConfigureEnvironment brings the SDK to the state EnvironmentStatus expects. A
// missing SDK is a ConfigurationError; beta components are installed and the SDK is
// initialized interactively when needed.
func ConfigureEnvironment(executionContext context.Context, client *Client, status Status, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !status.SDKInstalled {
		return ConfigurationError{Message: sdkNotInstalledMessageConstant}
	}

	if !status.BetaComponentsInstalled {
		logger.Info(installingBetaComponentsMessageConstant, zap.String(logFieldSectionConstant, logSectionConstant))
		if _, updateError := client.Call(executionContext, componentsSubcommandConstant, componentsUpdateSubcommandConstant, quietFlagConstant); updateError != nil {
			return updateError
		}
		if _, installError := client.Call(executionContext, componentsSubcommandConstant, componentsInstallSubcommandConstant, betaComponentNameConstant, quietFlagConstant); installError != nil {
			return installError
		}
	}

	if !status.SDKInitialized {
		logger.Info(initializingSDKMessageConstant, zap.String(logFieldSectionConstant, logSectionConstant))
		if initError := client.TTY(executionContext, initSubcommandConstant); initError != nil {
			return initError
		}
	}

	return nil
}
