package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/internal/gcloud"
)

const (
	environmentCommandUseConstant                = "env"
	environmentCommandShortDescriptionConstant   = "Inspect and prepare the Google Cloud SDK"
	environmentStatusCommandUseConstant          = "status"
	environmentStatusShortDescriptionConstant    = "Report whether the Google Cloud SDK is ready for deployments"
	environmentConfigureCommandUseConstant       = "configure"
	environmentConfigureShortDescriptionConstant = "Install missing SDK components and initialize the SDK"
	environmentStatusEncodeTemplateConstant      = "unable to render environment status: %w"
	environmentClientTemplateConstant            = "unable to create gcloud client: %w"
	environmentProjectTemplateConstant           = "project: %s\n"
)

func (application *Application) newEnvironmentCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   environmentCommandUseConstant,
		Short: environmentCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	command.AddCommand(
		&cobra.Command{
			Use:   environmentStatusCommandUseConstant,
			Short: environmentStatusShortDescriptionConstant,
			Args:  cobra.NoArgs,
			RunE:  application.printEnvironmentStatus,
		},
		&cobra.Command{
			Use:   environmentConfigureCommandUseConstant,
			Short: environmentConfigureShortDescriptionConstant,
			Args:  cobra.NoArgs,
			RunE:  application.configureEnvironment,
		},
	)
	return command
}

func (application *Application) printEnvironmentStatus(command *cobra.Command, _ []string) error {
	client, clientError := application.gcloudClient()
	if clientError != nil {
		return clientError
	}
	status := gcloud.EnvironmentStatus(command.Context(), client)
	return writeEnvironmentStatus(command.OutOrStdout(), client, status)
}

func (application *Application) configureEnvironment(command *cobra.Command, _ []string) error {
	client, clientError := application.gcloudClient()
	if clientError != nil {
		return clientError
	}

	executionContext := command.Context()
	status := gcloud.EnvironmentStatus(executionContext, client)
	if configureError := gcloud.ConfigureEnvironment(executionContext, client, status, application.logger); configureError != nil {
		return configureError
	}

	return writeEnvironmentStatus(command.OutOrStdout(), client, gcloud.EnvironmentStatus(executionContext, client))
}

func (application *Application) gcloudClient() (*gcloud.Client, error) {
	shellExecutor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, application.humanReadableLoggingEnabled())
	if executorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}
	client, clientError := gcloud.NewClient(shellExecutor, application.configuration.GCloud.DefaultProject, application.configuration.GCloud.Account)
	if clientError != nil {
		return nil, fmt.Errorf(environmentClientTemplateConstant, clientError)
	}
	return client, nil
}

func writeEnvironmentStatus(output io.Writer, client *gcloud.Client, status gcloud.Status) error {
	encoder := yaml.NewEncoder(output)
	encoder.SetIndent(2)
	if encodeError := encoder.Encode(status); encodeError != nil {
		return fmt.Errorf(environmentStatusEncodeTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(environmentStatusEncodeTemplateConstant, closeError)
	}
	if project := client.Project(); len(project) > 0 {
		fmt.Fprintf(output, environmentProjectTemplateConstant, project)
	}
	return nil
}
