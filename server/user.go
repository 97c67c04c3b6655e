package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/services"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/storage"
)

func newUserCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Commands for managing local forum accounts",
	}

	cmd.AddCommand(newUserCreateCommand(flags))

	return cmd
}

func newUserCreateCommand(flags *globalFlags) *cobra.Command {
	var (
		username string
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a local user",
		Long:  "Create an account that signs in with a password instead of the shared session cookie",
		Example: `  # Create an admin, prompting for the password
  server user create --username admin --email admin@example.com --role admin

  # Create a regular user non-interactively
  server user create --username bob --email bob@example.com --password pass123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				password, err = promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			_, backend, err := openStore(cmd.Context(), flags, storage.Options{})
			if err != nil {
				return err
			}
			defer backend.Close()

			accounts := services.NewAccountService(backend.Repos.Users, backend.Repos.Audit)
			return createUser(cmd.Context(), accounts, cmd.OutOrStdout(), username, email, password, role)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&password, "password", "", "User password (prompted when omitted)")
	cmd.Flags().StringVar(&role, "role", "user", "User role (user, admin)")

	_ = cmd.MarkFlagRequired("username")

	return cmd
}

// localUserCreator is the slice of AccountService the command needs
type localUserCreator interface {
	CreateLocalUser(ctx context.Context, username, email, password string, role entities.Role) (*entities.User, error)
}

func createUser(ctx context.Context, accounts localUserCreator, out io.Writer, username, email, password, role string) error {
	user, err := accounts.CreateLocalUser(ctx, username, strings.TrimSpace(email), password, entities.Role(role))
	if err != nil {
		return err
	}

	slog.Info("User created successfully",
		"uid", user.ID,
		"username", user.Username,
		"userslug", user.Userslug,
		"role", user.Role,
	)
	fmt.Fprintf(out, "created user %d (%s)\n", user.ID, user.Userslug)
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal,
// otherwise it reads one line from in.
func promptPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprint(prompt, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}
