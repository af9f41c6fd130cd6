package main

import (
	"github.com/spf13/cobra"
)

// buildFilesCmd creates the "files" command group.
func buildFilesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage attachments stored in the FileStore",
	}

	gc := &cobra.Command{
		Use:   "gc",
		Short: "Delete attachment files no thread references",
		Long: `Delete attachment files no thread references.

Loads the configured ThreadStore and FileStore, lists every attachment
file ID any thread still points at, and removes local files that aren't
in that set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesGC(cmd.Context(), cmd, configPath)
		},
	}
	gc.Flags().StringVarP(&configPath, "config", "c", "tyler.yaml", "Path to YAML configuration file")
	cmd.AddCommand(gc)

	return cmd
}
