package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/budget"
	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

func periodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Manage budget periods",
		Long:  `Create, list, summarize, and delete budget periods.`,
	}

	cmd.AddCommand(createPeriodCmd())
	cmd.AddCommand(createMonthlyPeriodCmd())
	cmd.AddCommand(listPeriodsCmd())
	cmd.AddCommand(showPeriodCmd())
	cmd.AddCommand(currentPeriodCmd())
	cmd.AddCommand(deletePeriodCmd())

	return cmd
}

func createPeriodCmd() *cobra.Command {
	var (
		start  string
		end    string
		income string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a budget period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			endDate, err := parseDate(end)
			if err != nil {
				return err
			}
			totalIncome, err := model.ParseCents(income)
			if err != nil {
				return fmt.Errorf("invalid income amount %q: %w", income, err)
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

			period, err := store.CreatePeriod(ctx, userID, args[0], startDate, endDate, totalIncome)
			if err != nil {
				return fmt.Errorf("failed to create period: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created period %q (id %d) with income %s",
				period.Name, period.ID, period.TotalIncome)))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&income, "income", "0", "total income for the period")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func createMonthlyPeriodCmd() *cobra.Command {
	var income string

	cmd := &cobra.Command{
		Use:   "create-monthly [YYYY-MM]",
		Short: "Create a calendar-month budget period",
		Long:  `Create a period spanning one calendar month. Defaults to the current month.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			month := time.Now().UTC().Format("2006-01")
			if len(args) == 1 {
				month = args[0]
			}
			if !model.ValidMonth(month) {
				return fmt.Errorf("invalid month %q, expected YYYY-MM", month)
			}

			start, err := time.Parse("2006-01", month)
			if err != nil {
				return fmt.Errorf("invalid month %q: %w", month, err)
			}
			end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

			totalIncome, err := model.ParseCents(income)
			if err != nil {
				return fmt.Errorf("invalid income amount %q: %w", income, err)
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

			period, err := store.CreatePeriod(ctx, userID, start.Format("January 2006"), start, end, totalIncome)
			if err != nil {
				return fmt.Errorf("failed to create period: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created period %q (id %d) with income %s",
				period.Name, period.ID, period.TotalIncome)))
			return nil
		},
	}

	cmd.Flags().StringVar(&income, "income", "0", "total income for the month")

	return cmd
}

func currentPeriodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the period covering today",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			period, err := store.GetPeriodCovering(ctx, userID, time.Now().UTC())
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					fmt.Println(cli.FormatInfo("No period covers today. Use 'coinconductor periods create-monthly' to start one."))
					return nil
				}
				return fmt.Errorf("failed to find current period: %w", err)
			}

			return printPeriodSummary(ctx, store, userID, period.ID)
		},
	}
}

func listPeriodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List budget periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			periods, err := store.ListPeriods(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list periods: %w", err)
			}

			if len(periods) == 0 {
				fmt.Println(cli.FormatInfo("No periods found. Use 'coinconductor periods create' to start one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Start"),
				cli.TableHeaderStyle.Render("End"),
				cli.TableHeaderStyle.Render("Income"))

			for _, p := range periods {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name,
					p.StartDate.Format("2006-01-02"),
					p.EndDate.Format("2006-01-02"),
					p.TotalIncome)
			}

			return nil
		},
	}
}

func showPeriodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <period-id>",
		Short: "Show the reconciled summary of a period",
		Long:  `Display per-envelope allocated, spent, and remaining amounts plus period totals.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			periodID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid period id %q", args[0])
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

			return printPeriodSummary(ctx, store, userID, periodID)
		},
	}
}

func printPeriodSummary(ctx context.Context, store service.Storage, userID, periodID int64) error {
	summary, err := budget.New(store).Summarize(ctx, userID, periodID)
	if err != nil {
		return fmt.Errorf("failed to summarize period: %w", err)
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("%s (%s to %s)",
		summary.Period.Name,
		summary.Period.StartDate.Format("2006-01-02"),
		summary.Period.EndDate.Format("2006-01-02"))))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		cli.TableHeaderStyle.Render("Envelope"),
		cli.TableHeaderStyle.Render("Allocated"),
		cli.TableHeaderStyle.Render("Spent"),
		cli.TableHeaderStyle.Render("Remaining"))
	for _, a := range summary.Allocations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.CategoryName, a.AllocatedAmount, a.Spent, a.Remaining)
	}
	_ = w.Flush()

	fmt.Println()
	fmt.Printf("Income:      %s\n", summary.TotalIncome)
	fmt.Printf("Allocated:   %s\n", summary.TotalAllocated)
	fmt.Printf("Spent:       %s\n", summary.TotalSpent)
	fmt.Printf("Remaining:   %s\n", summary.TotalRemaining)
	if summary.Unallocated < 0 {
		fmt.Printf("Unallocated: %s\n", cli.ErrorStyle.Render(summary.Unallocated.String()+" (over-allocated)"))
	} else {
		fmt.Printf("Unallocated: %s\n", summary.Unallocated)
	}
	if summary.UnallocatedSpend != 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Spend outside envelopes: %s", summary.UnallocatedSpend)))
	}
	if summary.UnassignedSpend != 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Uncategorized spend: %s", summary.UnassignedSpend)))
	}

	return nil
}

func deletePeriodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <period-id>",
		Short: "Delete a budget period",
		Long: `Delete a period along with its envelope allocations. Transactions in
the period's range are kept and detached from it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			periodID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid period id %q", args[0])
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

			if err := store.DeletePeriod(ctx, userID, periodID); err != nil {
				return fmt.Errorf("failed to delete period: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted period %d", periodID)))
			return nil
		},
	}
}
