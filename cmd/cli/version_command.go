package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyemirov/stagehand/internal/execshell"
	"github.com/tyemirov/stagehand/internal/version"
)

const (
	versionCommandUseNameConstant          = "version"
	versionCommandShortDescriptionConstant = "Print the stagehand version"
	versionCommandLongDescriptionConstant  = "version prints the current stagehand release identifier and the revision it was built from."
	versionOutputTemplateConstant          = "stagehand version: %s\n"
	versionRevisionTemplateConstant        = "revision: %s%s\n"
	versionGoTemplateConstant              = "go: %s\n"
	versionModifiedSuffixConstant          = " (modified)"
)

func (application *Application) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Long:  versionCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			application.printVersion(command)
			return nil
		},
	}
}

func (application *Application) resolveVersion(executionContext context.Context) version.Info {
	dependencies := version.Dependencies{}
	gitExecutor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, application.humanReadableLoggingEnabled())
	if executorError == nil {
		dependencies.GitExecutor = gitExecutor
	}
	return version.Detect(executionContext, dependencies)
}

func (application *Application) printVersion(command *cobra.Command) {
	info := application.versionResolver(command.Context())
	output := command.OutOrStdout()

	fmt.Fprintf(output, versionOutputTemplateConstant, info.Version)
	if len(info.Revision) > 0 {
		modifiedSuffix := ""
		if info.Modified {
			modifiedSuffix = versionModifiedSuffixConstant
		}
		fmt.Fprintf(output, versionRevisionTemplateConstant, info.Revision, modifiedSuffix)
	}
	if len(info.GoVersion) > 0 {
		fmt.Fprintf(output, versionGoTemplateConstant, info.GoVersion)
	}
}
