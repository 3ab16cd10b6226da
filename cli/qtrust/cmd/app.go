package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iort-labs/qtrust/logger"
)

type (
	// LoggerFactory builds the application logger from the resolved configuration.
	LoggerFactory func(cfg *logger.LogConfiguration) (*slog.Logger, error)

	qtrustApp struct {
		baseCmd    *cobra.Command
		baseConfig *baseConfiguration
	}
)

/*
New creates the qtrust command line application. When logF is nil logger.New
is used to build the logger.
*/
func New(logF LoggerFactory) *qtrustApp {
	if logF == nil {
		logF = logger.New
	}
	config := &baseConfiguration{loggerBuilder: logF}
	root := &cobra.Command{
		Use:   "qtrust",
		Short: "Trust propagation and trust weighted consensus for IoRT networks",
		Long: `qtrust generates Internet of Robotic Things networks, propagates trust over
the network topology and runs trust weighted consensus rounds on it.

Flags can also be set in $QT_HOME/config.props or with QT_ prefixed
environment variables (ie QT_ADVERSARIAL_RATIO=0.1), command line wins.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		// subcommands inherit this unless they define their own
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.load(cmd); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(root)
	root.AddCommand(
		newSimulateCmd(config),
		newScenariosCmd(config),
		newCoordinateCmd(config),
	)
	return &qtrustApp{baseCmd: root, baseConfig: config}
}

// Execute runs the command selected by the command line arguments.
func (a *qtrustApp) Execute(ctx context.Context) (rErr error) {
	defer func() {
		if a.baseConfig.observe != nil {
			rErr = errors.Join(rErr, a.baseConfig.observe.Shutdown())
		}
	}()
	return a.baseCmd.ExecuteContext(ctx)
}
