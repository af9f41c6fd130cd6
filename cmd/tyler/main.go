// Command tyler runs a multi-agent conversational runtime: load a config
// file naming one or more agent personas and their LLM providers, then
// either serve a minimal HTTP surface over internal/ingress or run
// maintenance subcommands (database migrations, orphaned-file cleanup).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/flores8/tyler/internal/observability"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	level := "info"
	if os.Getenv("TYLER_LOG_LEVEL") != "" {
		level = os.Getenv("TYLER_LOG_LEVEL")
	}
	handler := observability.NewHandler(observability.LogConfig{
		Level:  level,
		Format: "json",
		Output: os.Stderr,
	})
	slog.SetDefault(slog.New(handler))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd wires every subcommand onto the root. Kept separate from
// main for testability.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tyler",
		Short: "Tyler - a multi-agent conversational runtime",
		Long: `Tyler loads one or more named agent personas from a config file and
exposes them behind a router and a transport-agnostic Ingress surface.

Configured LLM providers: Anthropic (Claude), OpenAI (GPT)`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	root.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildFilesCmd(),
	)

	return root
}
