package main

import (
	"github.com/spf13/cobra"
)

// buildMigrateCmd creates the "migrate" command group.
func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL thread store schema",
	}
	cmd.AddCommand(buildMigrateUpCmd())
	return cmd
}

func buildMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to the configured SQL database",
		Long: `Apply pending migrations to the configured SQL database.

Reads connection details from TYLER_DB_TYPE/TYLER_DB_HOST/TYLER_DB_PORT/
TYLER_DB_NAME/TYLER_DB_USER/TYLER_DB_PASSWORD/TYLER_DB_POOL_SIZE. There is
no "down" command: sqlstore only ever moves a schema forward.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context(), cmd)
		},
	}
}
