package main

import (
	"context"
	"fmt"

	"github.com/flores8/tyler/internal/threadstore/sqlstore"
	"github.com/spf13/cobra"
)

// runMigrateUp opens the configured SQL database, which applies every
// pending migration as a side effect of sqlstore.Open, and reports the
// resulting dialect.
func runMigrateUp(ctx context.Context, cmd *cobra.Command) error {
	envCfg := sqlstore.ConfigFromEnv()

	store, err := sqlstore.Open(ctx, envCfg.Dialect, envCfg.DSN, envCfg.PoolSize)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer store.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (dialect: %s)\n", envCfg.Dialect)
	return nil
}
