package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/bank"
	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/importer"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/ofx"
)

const importChunkSize = 50

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from bank feeds and statement files",
	}

	cmd.AddCommand(importSyncCmd())
	cmd.AddCommand(importOFXCmd())

	return cmd
}

func importSyncCmd() *cobra.Command {
	var (
		accountID int64
		from      string
		to        string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync transactions from a connected bank account",
		Long: `Fetch transactions from the account's provider and reconcile them into
the ledger. Already-imported transactions are skipped; amount mismatches are
reported as conflicts and never overwrite existing data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			end := time.Now()
			start := end.AddDate(0, 0, -30)
			var err error
			if from != "" {
				start, err = parseDate(from)
				if err != nil {
					return err
				}
			}
			if to != "" {
				end, err = parseDate(to)
				if err != nil {
					return err
				}
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

			account, err := store.GetBankAccount(ctx, userID, accountID)
			if err != nil {
				return fmt.Errorf("failed to load bank account: %w", err)
			}

			fetcher, err := bank.NewFetcher(account)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatInfo(fmt.Sprintf("Fetching %s transactions from %s to %s...",
				account.Provider, start.Format("2006-01-02"), end.Format("2006-01-02"))))

			batch, err := fetcher.FetchTransactions(ctx, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch transactions: %w", err)
			}
			if len(batch) == 0 {
				fmt.Println(cli.FormatInfo("Nothing to import."))
				return nil
			}

			reconciler := importer.New(store)
			bar := cli.NewProgressBar(os.Stderr, len(batch), "Importing transactions...")

			total := &importer.Result{}
			for offset := 0; offset < len(batch); offset += importChunkSize {
				chunkEnd := offset + importChunkSize
				if chunkEnd > len(batch) {
					chunkEnd = len(batch)
				}
				chunk := batch[offset:chunkEnd]

				result, err := reconciler.ImportBatch(ctx, userID, accountID, chunk)
				if err != nil {
					return fmt.Errorf("import failed: %w", err)
				}
				mergeResults(total, result)
				_ = bar.Add(len(chunk))
			}

			printImportResult(total)
			return nil
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "bank account id")
	cmd.Flags().StringVar(&from, "from", "", "start date (default: 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "end date (default: today)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func importOFXCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ofx <file>...",
		Short: "Import OFX/QFX statement files",
		Long: `Parse OFX or QFX statement files and reconcile their transactions into
the ledger. FITIDs keep re-imports idempotent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID, err := currentUserID(ctx, store)
			if err != nil {
				return err
			}

			parser := ofx.NewParser()
			reconciler := importer.New(store)
			total := &importer.Result{}

			bar := cli.NewProgressBar(os.Stderr, len(args), "Importing statement files...")
			for _, path := range args {
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}

				batch, err := parser.ParseFile(ctx, file)
				_ = file.Close()
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", path, err)
				}

				result, err := reconciler.ImportStatement(ctx, userID, model.SourceOFX, batch)
				if err != nil {
					return fmt.Errorf("import of %s failed: %w", path, err)
				}
				mergeResults(total, result)
				_ = bar.Add(1)
			}

			printImportResult(total)
			return nil
		},
	}
}

func mergeResults(total, result *importer.Result) {
	total.Created = append(total.Created, result.Created...)
	total.Skipped = append(total.Skipped, result.Skipped...)
	total.Conflicts = append(total.Conflicts, result.Conflicts...)
}

func printImportResult(result *importer.Result) {
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d new, skipped %d duplicates",
		len(result.Created), len(result.Skipped))))

	if len(result.Conflicts) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d conflicts need review:", len(result.Conflicts))))
		for _, c := range result.Conflicts {
			fmt.Printf("  %s: existing %s, incoming %s (transaction %s)\n",
				c.ExternalID, c.ExistingAmount, c.IncomingAmount, c.TransactionID)
		}
	}
}
