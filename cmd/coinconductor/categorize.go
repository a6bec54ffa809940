package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/classify"
	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/config"
	"github.com/coinconductor/coinconductor/internal/ledger"
)

func categorizeCmd() *cobra.Command {
	var (
		concurrency   int
		timeout       time.Duration
		minConfidence float64
	)

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize unassigned transactions with AI",
		Long: `Send every transaction without a category to the configured AI
classifier and file accepted suggestions into envelopes. Transactions the
classifier cannot place stay unassigned.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := classify.NewClient(config.LoadClassifierConfig())
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID, err := currentUserID(ctx, store)
			if err != nil {
				return err
			}

			dispatcher := classify.NewDispatcher(store, ledger.New(store), classify.NewClassifier(client),
				classify.WithConcurrency(concurrency),
				classify.WithCallTimeout(timeout),
				classify.WithMinConfidence(minConfidence))

			fmt.Println(cli.FormatInfo(cli.RobotIcon + " Classifying unassigned transactions..."))

			outcomes, err := dispatcher.CategorizeUnassigned(ctx, userID)
			if errors.Is(err, common.ErrNoSuggestion) {
				fmt.Println(cli.FormatWarning("No categories exist yet. Add some with 'coinconductor categories add'."))
				return nil
			}
			if err != nil {
				return fmt.Errorf("categorization failed: %w", err)
			}
			if len(outcomes) == 0 {
				fmt.Println(cli.FormatInfo("Nothing to categorize."))
				return nil
			}

			var applied, skipped, failed int
			for _, out := range outcomes {
				switch {
				case out.Applied:
					applied++
					fmt.Printf("  %s %q → %s (%.0f%%)\n",
						cli.SuccessIcon, out.Description, out.CategoryName, out.Confidence*100)
				case errors.Is(out.Err, common.ErrNoSuggestion):
					skipped++
				default:
					failed++
					fmt.Println(cli.FormatWarning(fmt.Sprintf("%q: %v", out.Description, out.Err)))
				}
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Categorized %d transactions (%d skipped, %d failed)",
				applied, skipped, failed)))
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "classifier calls in flight")
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "per-transaction classifier timeout")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.5, "discard suggestions below this confidence")

	return cmd
}
