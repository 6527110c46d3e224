package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the admin CLI. Every subcommand opens the store named
// by --store, which defaults to STORE_URL.
func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "redirects-cli",
		Short:         "Administer the redirect store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Initialize(cfg.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfg.StoreURL, "store", cfg.StoreURL, "store URL (memory:, file:, libsql://, redis://, postgres://)")

	root.AddCommand(
		newExportCmd(cfg),
		newImportCmd(cfg),
		newReconcileCmd(cfg),
		newTokenCmd(cfg),
	)
	return root
}

func openStore(ctx context.Context, cfg *config.Config) (ports.KVStore, error) {
	store, err := repository.Open(ctx, cfg.StoreURL, cfg.RedisKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}
