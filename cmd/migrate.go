package cmd

import (
	"fmt"
	"strconv"

	"rafflepool/config"
	"rafflepool/database"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return database.MigrateUp(config.Get().GetDatabaseURL())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					parsed, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid steps %q: %w", args[0], err)
					}
					steps = parsed
				}
				return database.MigrateDown(config.Get().GetDatabaseURL(), steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, err := database.GetMigrationStatus(config.Get().GetDatabaseURL())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !status.Applied {
					fmt.Fprintln(out, "No migrations applied")
					return nil
				}
				fmt.Fprintf(out, "Version: %d\n", status.Version)
				if status.Dirty {
					fmt.Fprintln(out, "Status: dirty (last migration failed, fix manually)")
				} else {
					fmt.Fprintln(out, "Status: clean")
				}
				return nil
			},
		},
	)
	return migrateCmd
}
