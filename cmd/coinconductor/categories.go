package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/budget"
	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage envelope categories",
		Long:  `Add, list, update, and delete the monthly envelope categories transactions are filed under.`,
	}

	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(balanceCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func addCategoryCmd() *cobra.Command {
	var (
		month     string
		budgetStr string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category for a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			budgetAmount, err := model.ParseCents(budgetStr)
			if err != nil {
				return fmt.Errorf("invalid budget amount %q: %w", budgetStr, err)
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

			cat, err := store.CreateCategory(ctx, userID, args[0], month, budgetAmount)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created category %q (id %d) for %s with budget %s",
				cat.Name, cat.ID, cat.Month, cat.BudgetAmount)))
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month (YYYY-MM)")
	cmd.Flags().StringVar(&budgetStr, "budget", "0", "monthly budget amount")
	_ = cmd.MarkFlagRequired("month")

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
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

			categories, err := store.ListCategories(ctx, userID, month)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println(cli.FormatInfo("No categories found. Use 'coinconductor categories add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Month"),
				cli.TableHeaderStyle.Render("Budget"))

			for _, cat := range categories {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cat.ID, cat.Name, cat.Month, cat.BudgetAmount)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "filter by month (YYYY-MM)")

	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name      string
		budgetStr string
	)

	cmd := &cobra.Command{
		Use:   "update <category-id>",
		Short: "Rename a category or change its budget",
		Long:  `Update a category's name or budget amount. The month is fixed at creation.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
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

			cat, err := store.GetCategory(ctx, userID, id)
			if err != nil {
				return fmt.Errorf("failed to load category: %w", err)
			}

			if name == "" {
				name = cat.Name
			}
			budgetAmount := cat.BudgetAmount
			if budgetStr != "" {
				budgetAmount, err = model.ParseCents(budgetStr)
				if err != nil {
					return fmt.Errorf("invalid budget amount %q: %w", budgetStr, err)
				}
			}

			if err := store.UpdateCategory(ctx, userID, id, name, budgetAmount); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated category %d", id)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&budgetStr, "budget", "", "new budget amount")

	return cmd
}

func balanceCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <category-id>",
		Short: "Show a category's spend against its monthly budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
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

			balance, err := budget.New(store).CategoryBalance(ctx, userID, id)
			if err != nil {
				return fmt.Errorf("failed to compute balance: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%s (%s)", balance.Name, balance.Month)))
			fmt.Printf("Budget:    %s\n", balance.BudgetAmount)
			fmt.Printf("Spent:     %s\n", balance.Spent)
			if balance.Remaining < 0 {
				fmt.Printf("Remaining: %s\n", cli.ErrorStyle.Render(balance.Remaining.String()+" (over budget)"))
			} else {
				fmt.Printf("Remaining: %s\n", balance.Remaining)
			}

			return nil
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	var orphan bool

	cmd := &cobra.Command{
		Use:   "delete <category-id>",
		Short: "Delete a category",
		Long: `Delete a category and its envelope allocations. Fails if transactions
still reference the category unless --orphan detaches them first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
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

			if err := store.DeleteCategory(ctx, userID, id, orphan); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted category %d", id)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&orphan, "orphan", false, "detach referencing transactions instead of failing")

	return cmd
}
