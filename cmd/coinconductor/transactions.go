package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/ledger"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Manage transactions",
		Long:    `Record, list, categorize, and delete transactions.`,
	}

	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(assignTransactionCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

func addTransactionCmd() *cobra.Command {
	var (
		date       string
		amountStr  string
		categoryID int64
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Record a manual transaction",
		Long: `Record a transaction. Positive amounts are expenses, negative amounts
are income. The covering budget period is resolved from the date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			txnDate, err := parseDate(date)
			if err != nil {
				return err
			}
			amount, err := model.ParseCents(amountStr)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amountStr, err)
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

			txn := &model.Transaction{
				Date:        txnDate,
				Description: args[0],
				Amount:      amount,
				Notes:       notes,
			}
			if categoryID != 0 {
				txn.CategoryID = &categoryID
			}

			created, err := ledger.New(store).Create(ctx, userID, txn)
			if err != nil {
				return fmt.Errorf("failed to record transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %q for %s (id %s)",
				created.Description, created.Amount, created.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount (positive = expense, negative = income)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		from       string
		to         string
		categoryID int64
		periodID   int64
		source     string
		unassigned bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := service.TransactionFilter{
				Source:     source,
				Unassigned: unassigned,
				Limit:      limit,
			}
			if from != "" {
				start, err := parseDate(from)
				if err != nil {
					return err
				}
				filter.StartDate = &start
			}
			if to != "" {
				end, err := parseDate(to)
				if err != nil {
					return err
				}
				filter.EndDate = &end
			}
			if categoryID != 0 {
				filter.CategoryID = &categoryID
			}
			if periodID != 0 {
				filter.BudgetPeriodID = &periodID
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

			txns, err := store.ListTransactions(ctx, userID, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if len(txns) == 0 {
				fmt.Println(cli.FormatInfo("No transactions found."))
				return nil
			}

			categoryNames := make(map[int64]string)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Date"),
				cli.TableHeaderStyle.Render("Description"),
				cli.TableHeaderStyle.Render("Amount"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Source"),
				cli.TableHeaderStyle.Render("ID"))

			for _, txn := range txns {
				category := cli.SubtleStyle.Render("(unassigned)")
				if txn.CategoryID != nil {
					name, ok := categoryNames[*txn.CategoryID]
					if !ok {
						name = strconv.FormatInt(*txn.CategoryID, 10)
						if cat, catErr := store.GetCategory(ctx, userID, *txn.CategoryID); catErr == nil {
							name = cat.Name
						}
						categoryNames[*txn.CategoryID] = name
					}
					category = name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					txn.Date.Format("2006-01-02"),
					txn.Description,
					cli.FormatAmount(txn.Amount),
					category,
					txn.Source,
					txn.ID)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "filter by category id")
	cmd.Flags().Int64Var(&periodID, "period", 0, "filter by budget period id")
	cmd.Flags().StringVar(&source, "source", "", "filter by source (manual, simplefin, gocardless, ofx)")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only transactions without a category")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows")

	return cmd
}

func assignTransactionCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "assign <transaction-id> [category-id]",
		Short: "Assign a transaction to a category",
		Long:  `Assign a transaction to an envelope category, or clear the assignment with --clear.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var categoryID *int64
			if !clear {
				if len(args) < 2 {
					return fmt.Errorf("category id required unless --clear is set")
				}
				id, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid category id %q", args[1])
				}
				categoryID = &id
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

			txn, err := ledger.New(store).Assign(ctx, userID, args[0], categoryID)
			if err != nil {
				return fmt.Errorf("failed to assign transaction: %w", err)
			}

			if categoryID == nil {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Cleared category on %q", txn.Description)))
			} else {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Assigned %q to category %d", txn.Description, *categoryID)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "clear the category assignment")

	return cmd
}

func editTransactionCmd() *cobra.Command {
	var (
		date        string
		amountStr   string
		description string
		notes       string
	)

	cmd := &cobra.Command{
		Use:   "edit <transaction-id>",
		Short: "Edit a transaction",
		Long: `Edit a transaction's date, amount, description, or notes. Moving the
date re-resolves the covering period; if the assigned category does not fit
the new period the assignment is cleared.`,
		Args: cobra.ExactArgs(1),
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

			txn, err := store.GetTransaction(ctx, userID, args[0])
			if err != nil {
				return fmt.Errorf("failed to load transaction: %w", err)
			}

			if date != "" {
				txn.Date, err = parseDate(date)
				if err != nil {
					return err
				}
			}
			if amountStr != "" {
				txn.Amount, err = model.ParseCents(amountStr)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amountStr, err)
				}
			}
			if description != "" {
				txn.Description = description
			}
			if cmd.Flags().Changed("notes") {
				txn.Notes = notes
			}

			hadCategory := txn.CategoryID != nil
			updated, err := ledger.New(store).Update(ctx, userID, txn)
			if err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated %q", updated.Description)))
			if hadCategory && updated.CategoryID == nil {
				fmt.Println(cli.FormatWarning("Category cleared: it does not belong to the new date's period."))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "new date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amountStr, "amount", "", "new amount")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")

	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
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

			if err := ledger.New(store).Delete(ctx, userID, args[0]); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted transaction %s", args[0])))
			return nil
		},
	}
}
