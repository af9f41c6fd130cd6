package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command: the primary way to run Tyler.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start Tyler's HTTP surface over Ingress",
		Long: `Start Tyler's HTTP surface over Ingress.

Loads the configured agent personas and LLM providers, wires a Router and
an Ingress over them, and exposes a minimal net/http handler a transport
adapter would otherwise implement: POST /v1/messages to submit, GET
/v1/threads/{id} and /v1/threads to read, DELETE /v1/threads/{id} to
remove. Graceful shutdown on SIGINT/SIGTERM.`,
		Example: `  tyler serve --config tyler.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tyler.yaml", "Path to YAML configuration file")
	return cmd
}
