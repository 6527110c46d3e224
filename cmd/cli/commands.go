package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/core/services"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every redirect with its click count to stdout as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			views, err := services.NewRedirectService(store).Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		},
	}
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load redirects from an export file, skipping existing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			var views []domain.RedirectView
			if err := json.NewDecoder(f).Decode(&views); err != nil {
				return fmt.Errorf("decode %s: %w", file, err)
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := services.NewRedirectService(store).Import(cmd.Context(), views)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, failed %d\n", report.Imported, report.Skipped, report.Failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newReconcileCmd(cfg *config.Config) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild index partitions and drop orphan counters from the records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rc, err := services.NewReconciler(store)
			if err != nil {
				return err
			}
			report, err := rc.Run(cmd.Context(), dryRun)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report drift without writing")
	return cmd
}

func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			signed, _, err := handler.IssueToken(cfg.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "principal recorded as created_by")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
