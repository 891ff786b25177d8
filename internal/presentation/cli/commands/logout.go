package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Long: `Sign out of the cloud store account.

The ledger stays on this device untouched; only the stored credential
is removed. Sync is disabled until the next login.`,
		Args: cobra.NoArgs,
		RunE: runLogout,
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	if err := container.SignOut(context.Background()); err != nil {
		return fmt.Errorf("sign-out failed: %w", err)
	}

	formatter.Success("Signed out - local data is untouched")
	return nil
}
