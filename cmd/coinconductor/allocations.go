package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

func allocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocations",
		Short: "Manage envelope allocations",
		Long:  `Fund envelopes: assign part of a period's income to a category.`,
	}

	cmd.AddCommand(setAllocationCmd())
	cmd.AddCommand(listAllocationsCmd())
	cmd.AddCommand(deleteAllocationCmd())

	return cmd
}

func setAllocationCmd() *cobra.Command {
	var (
		periodID   int64
		categoryID int64
	)

	cmd := &cobra.Command{
		Use:   "set <amount>",
		Short: "Fund an envelope",
		Long: `Allocate the amount to a category's envelope in a period. If the
envelope already exists its amount is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := model.ParseCents(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
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

			alloc, err := store.CreateAllocation(ctx, userID, periodID, categoryID, amount)
			if errors.Is(err, common.ErrDuplicateAllocation) {
				// Replace the existing envelope amount.
				allocs, listErr := store.GetAllocationsForPeriod(ctx, userID, periodID)
				if listErr != nil {
					return fmt.Errorf("failed to load allocations: %w", listErr)
				}
				for i := range allocs {
					if allocs[i].CategoryID == categoryID {
						if updErr := store.UpdateAllocation(ctx, userID, allocs[i].ID, amount); updErr != nil {
							return fmt.Errorf("failed to update allocation: %w", updErr)
						}
						fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated envelope for category %d to %s", categoryID, amount)))
						return nil
					}
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("failed to create allocation: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Funded envelope %d with %s", alloc.ID, alloc.AllocatedAmount)))
			return nil
		},
	}

	cmd.Flags().Int64Var(&periodID, "period", 0, "budget period id")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func listAllocationsCmd() *cobra.Command {
	var periodID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a period's envelopes",
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

			allocs, err := store.GetAllocationsForPeriod(ctx, userID, periodID)
			if err != nil {
				return fmt.Errorf("failed to list allocations: %w", err)
			}

			if len(allocs) == 0 {
				fmt.Println(cli.FormatInfo("No envelopes funded in this period."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Allocated"))

			for _, a := range allocs {
				name := strconv.FormatInt(a.CategoryID, 10)
				if cat, catErr := store.GetCategory(ctx, userID, a.CategoryID); catErr == nil {
					name = cat.Name
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, name, a.AllocatedAmount)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&periodID, "period", 0, "budget period id")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func deleteAllocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <allocation-id>",
		Short: "Remove an envelope",
		Long:  `Remove an envelope allocation. Transactions keep their category.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid allocation id %q", args[0])
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

			if err := store.DeleteAllocation(ctx, userID, id); err != nil {
				return fmt.Errorf("failed to delete allocation: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted allocation %d", id)))
			return nil
		},
	}
}
