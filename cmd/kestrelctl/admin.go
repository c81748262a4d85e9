package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/activity"
	"github.com/opensource-finance/kestrel/internal/bootstrap"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the model and encoder artifacts load and belong together",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arts, err := bootstrap.LoadArtifacts(cfg.Artifacts)
			if err != nil {
				return err
			}

			names, err := arts.Classifier.FeatureNames()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model:    %s (%s, %s)\n", cfg.Artifacts.ModelPath, arts.Classifier.Kind(), arts.Classifier.Version())
			fmt.Fprintf(out, "Encoders: %s (%s)\n", cfg.Artifacts.EncoderPath, arts.Encoder.Version())
			fmt.Fprintf(out, "Features (%d):\n", len(names))
			for i, n := range names {
				marker := ""
				if arts.Encoder.Has(n) {
					marker = fmt.Sprintf("  [categorical: %d classes]", len(arts.Encoder.Classes(n)))
				}
				fmt.Fprintf(out, "  %2d. %s%s\n", i+1, n, marker)
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		file  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load customer records into the configured store",
		Long: `Read customer documents from a JSON array or CSV file and upsert them into
the configured record store, keyed by name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			docs, err := readCustomerDocuments(file, limit)
			if err != nil {
				return err
			}

			var repo *repository.SQLRepository
			if cfg.Store.Type == "sql" {
				repo, err = repository.New(cfg.Repository)
				if err != nil {
					return fmt.Errorf("failed to initialize repository: %w", err)
				}
				defer repo.Close()
			}

			store, err := bootstrap.OpenStore(ctx, cfg.Store, repo)
			if err != nil {
				return err
			}
			if repo == nil {
				defer store.Close()
			}

			saved, skipped := 0, 0
			for i, doc := range docs {
				rec, err := domain.RecordFromDocument(doc)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping row %d: %v\n", i+1, err)
					skipped++
					continue
				}
				if err := store.SaveCustomer(ctx, rec); err != nil {
					return fmt.Errorf("failed to save %s: %w", rec.Name, err)
				}
				saved++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d customers into %s store (%d skipped)\n", saved, cfg.Store.Type, skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "artifacts/customers.json", "customer file (.json or .csv)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to load (0 = all)")
	return cmd
}

func newRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Save the activity log now instead of waiting for the scheduled rotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := activity.OpenFileLog(cfg.Activity.Dir)
			if err != nil {
				return err
			}
			defer log.Close()

			target, err := log.Rotate()
			if err != nil {
				return err
			}
			if target == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Activity log is empty; nothing to save")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
			return nil
		},
	}
}
