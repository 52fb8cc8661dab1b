package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/floroz/auction-house/pkg/auth"
	"github.com/floroz/auction-house/services/auction-service/internal/config"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/settlement"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/users"
	"github.com/floroz/auction-house/services/auction-service/migrations"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate <up|status>",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := sql.Open("pgx", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if args[0] == "status" {
				return migrations.Status(db)
			}
			if err := migrations.Up(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	return cmd
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle every expired, unsettled item once",
		Long: `Runs the same reconciliation pass the API performs at startup.

Timers are not re-armed: that is the API process's job.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, runErr := a.Scanner(nil).Run(ctx, a.Clock.Now())
			fmt.Fprintf(cmd.OutOrStdout(),
				"expired=%d settled=%d no_bids=%d already_settled=%d failed=%d\n",
				report.Expired, report.Settled, report.NoBids, report.AlreadySettled, report.Failed)
			return runErr
		},
	}
	return cmd
}

// NewSettleCommand creates the settle command.
func NewSettleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle <item-id>",
		Short: "Settle one item after its deadline",
		Long: `Settles a single item. Safe to repeat: an item that already has a winner
reports already_settled. Use it to retry after an integrity failure is fixed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.Settle(ctx, itemID, a.Clock.Now())
			if err != nil {
				var integrityErr *settlement.IntegrityError
				if errors.As(err, &integrityErr) {
					return fmt.Errorf("item left unsettled: %w", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Status {
			case settlement.StatusSettled, settlement.StatusAlreadySettled:
				fmt.Fprintf(out, "%s winner=%s amount=%d\n", res.Status, res.WinnerID, res.Amount)
			default:
				fmt.Fprintln(out, res.Status)
			}
			return nil
		},
	}
	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <item-id>",
		Short: "Print the bids on an item, highest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.Ledger.BidHistory(ctx, itemID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, b := range history {
				fmt.Fprintf(out, "%d\t%s\t%s\t%q\n", b.Amount, b.BidderID, b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), b.Message)
			}
			return nil
		},
	}
	return cmd
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage bidder accounts",
	}

	var (
		name    string
		balance int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user with an opening balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			if balance < 0 {
				return errors.New("--balance must not be negative")
			}

			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			now := a.Clock.Now()
			user := &users.User{
				ID:          uuid.New(),
				DisplayName: name,
				Balance:     balance,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := a.UserRepo.CreateUser(ctx, user); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().Int64Var(&balance, "balance", 0, "opening balance in cents")

	cmd.AddCommand(create)
	return cmd
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		privateKeyPath string
		publicKeyPath  string
		userID         string
		name           string
		issuer         string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", userID, err)
			}

			privateKeyPEM, err := os.ReadFile(privateKeyPath)
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}
			publicKeyPEM, err := os.ReadFile(publicKeyPath)
			if err != nil {
				return fmt.Errorf("failed to read public key: %w", err)
			}

			signer, err := auth.NewSigner(privateKeyPEM, publicKeyPEM, issuer)
			if err != nil {
				return err
			}

			token, err := signer.GenerateToken(id, name, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&privateKeyPath, "private-key", "", "PEM private key path")
	cmd.Flags().StringVar(&publicKeyPath, "public-key", "", "PEM public key path")
	cmd.Flags().StringVar(&userID, "user", "", "subject user id")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&issuer, "issuer", auth.DefaultIssuer, "token issuer")
	_ = cmd.MarkFlagRequired("private-key")
	_ = cmd.MarkFlagRequired("public-key")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func parseItemID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	return id, nil
}
