package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coinconductor/coinconductor/internal/bank"
	"github.com/coinconductor/coinconductor/internal/cli"
	"github.com/coinconductor/coinconductor/internal/model"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage bank account connections",
		Long:  `Connect, list, and remove the bank feeds transactions are imported from.`,
	}

	cmd.AddCommand(addSimpleFINAccountCmd())
	cmd.AddCommand(addGoCardlessAccountCmd())
	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(removeAccountCmd())

	return cmd
}

func addSimpleFINAccountCmd() *cobra.Command {
	var (
		token     string
		accessURL string
	)

	cmd := &cobra.Command{
		Use:   "add-simplefin <name>",
		Short: "Connect a SimpleFIN bank feed",
		Long: `Connect a SimpleFIN feed. Pass --token to claim a one-time setup token,
or --access-url if the token was already claimed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if token == "" && accessURL == "" {
				return fmt.Errorf("either --token or --access-url is required")
			}

			if accessURL == "" {
				var err error
				accessURL, err = bank.ClaimAccessURL(ctx, token)
				if err != nil {
					return fmt.Errorf("failed to claim SimpleFIN token: %w", err)
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

			account, err := store.CreateBankAccount(ctx, &model.BankAccount{
				UserID:   userID,
				Name:     args[0],
				Provider: model.ProviderSimpleFIN,
				Config:   model.SimpleFINConfig{AccessURL: accessURL},
			})
			if err != nil {
				return fmt.Errorf("failed to create bank account: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Connected SimpleFIN account %q (id %d)", account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "SimpleFIN setup token (claimed once)")
	cmd.Flags().StringVar(&accessURL, "access-url", "", "already-claimed SimpleFIN access URL")

	return cmd
}

func addGoCardlessAccountCmd() *cobra.Command {
	var (
		secretID    string
		secretKey   string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "add-gocardless <name>",
		Short: "Connect a GoCardless feed",
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

			account, err := store.CreateBankAccount(ctx, &model.BankAccount{
				UserID:   userID,
				Name:     args[0],
				Provider: model.ProviderGoCardless,
				Config: model.GoCardlessConfig{
					SecretID:    secretID,
					SecretKey:   secretKey,
					Environment: environment,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to create bank account: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Connected GoCardless account %q (id %d)", account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "GoCardless access token")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "GoCardless secret key")
	cmd.Flags().StringVar(&environment, "environment", "sandbox", "environment (sandbox or live)")
	_ = cmd.MarkFlagRequired("secret-id")

	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected bank accounts",
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

			accounts, err := store.ListBankAccounts(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list bank accounts: %w", err)
			}

			if len(accounts) == 0 {
				fmt.Println(cli.FormatInfo("No bank accounts connected."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Provider"),
				cli.TableHeaderStyle.Render("Last Synced"))

			for _, account := range accounts {
				lastSynced := cli.SubtleStyle.Render("(never)")
				if account.LastSynced != nil {
					lastSynced = account.LastSynced.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", account.ID, account.Name, account.Provider, lastSynced)
			}

			return nil
		},
	}
}

func removeAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Disconnect a bank account",
		Long:  `Disconnect a bank feed. Imported transactions are kept; only the account link is cleared.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid account id %q", args[0])
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

			if err := store.DeleteBankAccount(ctx, userID, id); err != nil {
				return fmt.Errorf("failed to remove bank account: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Disconnected account %d", id)))
			return nil
		},
	}
}
