package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tyemirov/stagehand/internal/api"
	"github.com/tyemirov/stagehand/internal/results"
	flagutils "github.com/tyemirov/stagehand/internal/utils/flags"
)

const (
	serveCommandUseConstant              = "serve"
	serveCommandShortDescriptionConstant = "Serve stored run records over HTTP"
	serveCommandLongDescriptionConstant  = "serve exposes the run records under the state directory at /runs and /runs/:id until interrupted."
	serveAddressFlagNameConstant         = "address"
	serveAddressFlagUsageConstant        = "Listen address (defaults to serve.address from configuration)"
)

func (application *Application) newServeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   serveCommandUseConstant,
		Short: serveCommandShortDescriptionConstant,
		Long:  serveCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  application.serveRuns,
	}
	command.Flags().String(serveAddressFlagNameConstant, "", serveAddressFlagUsageConstant)
	command.Flags().String(flagutils.StateDirectoryFlagName, "", flagutils.StateDirectoryFlagUsage)
	return command
}

func (application *Application) serveRuns(command *cobra.Command, _ []string) error {
	address := application.configuration.Serve.Address
	if flagValue, flagChanged, flagError := flagutils.StringFlag(command, serveAddressFlagNameConstant); flagError == nil && flagChanged {
		address = strings.TrimSpace(flagValue)
	}

	runConfiguration := application.effectiveRunConfiguration(command)
	store, storeError := results.NewFileStore(absolutePath(runConfiguration.StateDirectory))
	if storeError != nil {
		return storeError
	}

	server, serverError := api.NewServer(store, application.logger)
	if serverError != nil {
		return serverError
	}

	executionContext, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(executionContext, address)
}
