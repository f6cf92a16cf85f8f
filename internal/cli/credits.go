package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// creditsHistoryLimit caps the default ledger listing.
const creditsHistoryLimit = 25

// AccountService covers the credit-account operations the credits and users
// commands need, satisfied by *gateway.Accounts.
type AccountService interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Lookup(ctx context.Context, email string) (*domain.User, error)
	Balance(ctx context.Context, userID string) (int64, error)
	TopUp(ctx context.Context, userID string, paymentUSD float64) (*domain.CreditTransaction, error)
	Transactions(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error)
}

// AddCreditsCommand adds the credits command group to the root command.
func AddCreditsCommand(parent *cobra.Command, flags *GlobalFlags) {
	var userEmail string

	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Manage credit balances",
		Long: `Inspect and fund credit accounts. Credits are the billing unit for LLM
calls: one US dollar buys 1000 credits before markup, and every gateway
call deducts its cost from the caller's balance. Without --user, the
local operator account is used.`,
	}
	cmd.PersistentFlags().StringVar(&userEmail, "user", constants.OperatorEmail, "account email")

	cmd.AddCommand(newCreditsBalanceCmd(flags, &userEmail))
	cmd.AddCommand(newCreditsTopupCmd(flags, &userEmail))
	cmd.AddCommand(newCreditsHistoryCmd(flags, &userEmail))

	parent.AddCommand(cmd)
}

func newCreditsBalanceCmd(flags *GlobalFlags, userEmail *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show an account's credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := systemFor(ctx, flags)
			if err != nil {
				return err
			}
			defer closeSystem(o)
			return runCreditsBalance(ctx, os.Stdout, flags, *userEmail, o.Accounts())
		},
	}
}

func newCreditsTopupCmd(flags *GlobalFlags, userEmail *string) *cobra.Command {
	return &cobra.Command{
		Use:   "topup <usd>",
		Short: "Fund an account with a USD payment",
		Long: `Convert a USD payment into credits and append the top-up to the account
ledger. The configured markup rate is deducted up front, so a $10 payment
at the default 15% markup credits 8695.

Example:
  smartspec credits topup 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := systemFor(ctx, flags)
			if err != nil {
				return err
			}
			defer closeSystem(o)
			return runCreditsTopup(ctx, os.Stdout, flags, *userEmail, args[0], o.Accounts())
		},
	}
}

func newCreditsHistoryCmd(flags *GlobalFlags, userEmail *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show an account's transaction ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := systemFor(ctx, flags)
			if err != nil {
				return err
			}
			defer closeSystem(o)
			return runCreditsHistory(ctx, os.Stdout, flags, *userEmail, limit, o.Accounts())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", creditsHistoryLimit, "maximum ledger entries to show")
	return cmd
}

// runCreditsBalance prints one account's balance.
func runCreditsBalance(ctx context.Context, w io.Writer, flags *GlobalFlags, email string, accounts AccountService) error {
	user, err := accounts.Lookup(ctx, email)
	if err != nil {
		return err
	}
	balance, err := accounts.Balance(ctx, user.ID)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(map[string]any{
			"email":   user.Email,
			"user_id": user.ID,
			"balance": balance,
		})
	}
	fmt.Fprintf(w, "%s  %s credits\n", user.Email, tui.StyleBold.Render(formatCredits(balance)))
	return nil
}

// runCreditsTopup parses the payment and appends the top-up.
func runCreditsTopup(ctx context.Context, w io.Writer, flags *GlobalFlags, email, usdArg string, accounts AccountService) error {
	usd, err := strconv.ParseFloat(usdArg, 64)
	if err != nil || usd <= 0 {
		return errors.Wrapf(errors.ErrInvalidAmount, "payment %q must be a positive USD amount", usdArg)
	}

	user, err := accounts.Lookup(ctx, email)
	if err != nil {
		return err
	}
	tx, err := accounts.TopUp(ctx, user.ID, usd)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(tx)
	}
	out := tui.NewTTYOutput(w)
	out.Success(fmt.Sprintf("credited %s with %s credits ($%.2f)",
		user.Email, formatCredits(tx.AmountCredits), usd))
	out.Info(fmt.Sprintf("balance: %s credits", formatCredits(tx.BalanceAfter)))
	return nil
}

// runCreditsHistory renders the ledger table, newest first.
func runCreditsHistory(ctx context.Context, w io.Writer, flags *GlobalFlags, email string, limit int, accounts AccountService) error {
	user, err := accounts.Lookup(ctx, email)
	if err != nil {
		return err
	}
	txs, err := accounts.Transactions(ctx, user.ID, limit)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(txs)
	}
	if len(txs) == 0 {
		tui.NewTTYOutput(w).Info("no transactions yet")
		return nil
	}

	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "WHEN", Width: 14},
		{Name: "KIND", Width: 10},
		{Name: "AMOUNT", Width: 10, Align: tui.AlignRight},
		{Name: "BALANCE", Width: 10, Align: tui.AlignRight},
	})
	table.WriteHeader()
	for _, tx := range txs {
		amount := formatCredits(tx.AmountCredits)
		if tx.AmountCredits > 0 {
			amount = "+" + amount
		}
		table.WriteRow(
			tui.RelativeTime(tx.CreatedAt),
			string(tx.Kind),
			amount,
			formatCredits(tx.BalanceAfter),
		)
	}
	return nil
}

// formatCredits renders a credit amount with thousand separators.
func formatCredits(credits int64) string {
	s := strconv.FormatInt(credits, 10)
	negative := false
	if len(s) > 0 && s[0] == '-' {
		negative = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if negative {
		return "-" + s
	}
	return s
}
