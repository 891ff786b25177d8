package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// loginFlags holds the flags for the login command.
type loginFlags struct {
	Email  string
	APIKey string
}

var loginOpts loginFlags

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <user-id>",
		Short: "Sign in and enable cloud sync",
		Long: `Sign in with a cloud store account.

Records created before sign-in belong to this device; logging in
re-owns them to the account and queues them for upload, so nothing
entered offline is lost.`,
		Example: `  # Sign in with an API key
  moneta login user-42 --api-key sk-... --email ada@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runLogin,
	}

	cmd.Flags().StringVarP(&loginOpts.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&loginOpts.APIKey, "api-key", "k", "", "cloud store API key")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	userID := args[0]
	apiKey := loginOpts.APIKey
	if apiKey == "" {
		p := newPrompter(formatter)
		key, err := p.promptSecret("API key")
		if err != nil {
			return err
		}
		apiKey = key
	}

	ctx := context.Background()
	if err := container.SignIn(ctx, userID, loginOpts.Email, apiKey); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	formatter.Success("Signed in as %s", userID)

	counts, err := container.Orchestrator().PendingCounts(ctx, userID)
	if err == nil {
		total := 0
		for _, n := range counts {
			total += n
		}
		if total > 0 {
			formatter.Info("%d record(s) queued for upload - run 'moneta sync' to push them now", total)
		}
	}

	return nil
}
