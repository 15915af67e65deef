package cmd

import (
	"context"
	"io"

	"rafflepool/config"
	"rafflepool/infrastructure"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the rafflepool command tree
func NewRootCommand() *cobra.Command {
	var logCloser io.Closer

	root := &cobra.Command{
		Use:          "rafflepool",
		Short:        "Pooled-contribution raffle ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			closer, err := infrastructure.ConfigureLogging(config.Get())
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newDeployCommand(),
		newStatusCommand(),
		newWatchCommand(),
		newSimulateCommand(),
	)
	return root
}

// Execute runs the command named by the process arguments
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
