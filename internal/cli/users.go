package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/tui"
)

// minPasswordLength mirrors the account service's registration policy so the
// interactive prompt rejects short passwords before the round trip.
const minPasswordLength = 8

// AddUsersCommand adds the users command group to the root command.
func AddUsersCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage credit accounts",
	}

	cmd.AddCommand(newUsersRegisterCmd(flags))

	parent.AddCommand(cmd)
}

func newUsersRegisterCmd(flags *GlobalFlags) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Register a new credit account",
		Long: `Create a user account for the credit-gated gateway. New accounts start
with a zero balance; fund them with 'smartspec credits topup'.

The password is prompted for interactively unless --password is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := systemFor(ctx, flags)
			if err != nil {
				return err
			}
			defer closeSystem(o)
			return runUsersRegister(ctx, os.Stdout, flags, args[0], password, o.Accounts())
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

// runUsersRegister collects the password and creates the account.
func runUsersRegister(ctx context.Context, w io.Writer, flags *GlobalFlags, email, password string, accounts AccountService) error {
	if password == "" {
		collected, err := tui.PasswordPrompt("Password for "+email, validatePassword)
		if err != nil {
			if errors.Is(err, sserrors.ErrPromptCanceled) {
				return sserrors.Wrap(sserrors.ErrInvalidArgument,
					"no terminal for the password prompt; pass --password")
			}
			return err
		}
		password = collected
	}

	user, err := accounts.Register(ctx, email, password)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(map[string]any{
			"email":   user.Email,
			"user_id": user.ID,
			"role":    user.Role,
		})
	}
	out := tui.NewTTYOutput(w)
	out.Success(fmt.Sprintf("registered %s", user.Email))
	out.Info("fund the account with: smartspec credits topup <usd> --user " + user.Email)
	return nil
}

// validatePassword applies the registration policy in the prompt.
func validatePassword(s string) error {
	if len(s) < minPasswordLength {
		return fmt.Errorf("must be at least %d characters", minPasswordLength)
	}
	return nil
}
