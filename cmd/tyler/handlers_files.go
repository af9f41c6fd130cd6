package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/flores8/tyler/internal/config"
	"github.com/flores8/tyler/internal/filestore"
	"github.com/spf13/cobra"
)

// runFilesGC loads configPath, builds the runtime's stores, and deletes
// every attachment file no thread references.
func runFilesGC(ctx context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()

	lister, ok := rt.files.(filestore.LocalLister)
	if !ok {
		return errors.New("files gc: configured file store does not support listing stored file ids")
	}

	deleted, errs := filestore.CleanupOrphaned(ctx, lister, rt.threads)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "deleted %d orphaned file(s)\n", deleted)
	for _, e := range errs {
		fmt.Fprintf(out, "error: %v\n", e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("files gc: %d error(s) during cleanup", len(errs))
	}
	return nil
}
