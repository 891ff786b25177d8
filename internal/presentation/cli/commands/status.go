package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// AccountStatus describes the signed-in principal, if any.
type AccountStatus struct {
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
}

// SyncStatusReport describes the sync engine's position.
type SyncStatusReport struct {
	SchedulerRunning bool           `json:"scheduler_running"`
	Pending          map[string]int `json:"pending"`
	LastRunAt        string         `json:"last_run_at,omitempty"`
	LastPush         string         `json:"last_push,omitempty"`
	LastPull         string         `json:"last_pull,omitempty"`
}

// ChatStatus describes the assistant configuration.
type ChatStatus struct {
	Configured bool   `json:"configured"`
	Breaker    string `json:"breaker,omitempty"`
}

// SystemStatus represents the overall system status for the status command.
type SystemStatus struct {
	Version  string           `json:"version"`
	Online   bool             `json:"online"`
	Account  AccountStatus    `json:"account"`
	Sync     SyncStatusReport `json:"sync"`
	Chat     ChatStatus       `json:"chat"`
	Database string           `json:"database"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var checkNetwork bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show account, network, and sync status",
		Long: `Display the status of the moneta system.

This includes:
  • Signed-in account
  • Network connectivity to the cloud store
  • Records awaiting upload or deletion, per kind
  • Background scheduler state and last run outcome
  • AI assistant availability`,
		Example: `  # Show status
  moneta status

  # Re-probe connectivity instead of using the cached result
  moneta status --check

  # Get status as JSON for scripting
  moneta status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(checkNetwork)
		},
	}

	cmd.Flags().BoolVar(&checkNetwork, "check", false, "probe connectivity instead of using the cached result")

	return cmd
}

func runStatus(checkNetwork bool) error {
	formatter := GetFormatter()

	status := getSystemStatus(checkNetwork)

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(status)
	}

	return printStatusText(formatter, status)
}

// getSystemStatus collects the status snapshot from the container.
func getSystemStatus(checkNetwork bool) SystemStatus {
	container := GetContainer()

	status := SystemStatus{
		Version: Version,
		Sync:    SyncStatusReport{Pending: map[string]int{}},
	}
	if container == nil {
		return status
	}

	status.Database = container.Config().Database.Path

	// Account
	ident := container.Identity()
	if userID, ok := ident.CurrentUserID(); ok {
		status.Account = AccountStatus{SignedIn: true, UserID: userID, Email: ident.Email()}
	} else {
		status.Account = AccountStatus{SignedIn: false, UserID: ledger.LocalUserID}
	}

	// Network
	if checkNetwork {
		container.Network().Invalidate()
	}
	status.Online = container.Network().Connected()

	// Sync
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if counts, err := container.Orchestrator().PendingCounts(ctx, container.CurrentUserID()); err == nil {
		for kind, n := range counts {
			status.Sync.Pending[string(kind)] = n
		}
	}
	status.Sync.SchedulerRunning = container.Scheduler().Running()
	if last := container.Scheduler().LastRun(); last != nil {
		status.Sync.LastRunAt = last.At.Format(time.RFC3339)
		status.Sync.LastPush = last.Push.String()
		status.Sync.LastPull = last.Pull.String()
	}

	// Chat
	if svc := container.Chat(); svc != nil {
		status.Chat = ChatStatus{Configured: true, Breaker: string(svc.BreakerState())}
	}

	return status
}

// printStatusText prints the status in human-readable format.
func printStatusText(formatter *output.Formatter, status SystemStatus) error {
	formatter.Header("Moneta Status")
	formatter.Println("")

	formatter.Println("  %s  %s", formatter.Dim("Version:"), status.Version)
	formatter.Println("  %s  %s", formatter.Dim("Network:"), networkIndicator(formatter, status.Online))
	formatter.Println("  %s  %s", formatter.Dim("Database:"), status.Database)
	formatter.Println("")

	formatter.SubHeader("Account")
	if status.Account.SignedIn {
		formatter.Success("Signed in as %s", status.Account.UserID)
		if status.Account.Email != "" {
			formatter.Item("Email", status.Account.Email)
		}
	} else {
		formatter.Warning("Not signed in - records stay on this device")
		formatter.Info("Run 'moneta login <user-id>' to enable cloud sync")
	}
	formatter.Println("")

	formatter.SubHeader("Sync")
	if status.Sync.SchedulerRunning {
		formatter.Item("Scheduler", formatter.Colorize("running", output.ColorGreen))
	} else {
		formatter.Item("Scheduler", formatter.Dim("stopped"))
	}
	totalPending := 0
	for _, kind := range ledger.SyncableKinds() {
		n := status.Sync.Pending[string(kind)]
		totalPending += n
		formatter.Item(pluralKind(kind), formatPending(formatter, n))
	}
	if status.Sync.LastRunAt != "" {
		formatter.Item("Last run", status.Sync.LastRunAt)
		formatter.Item("Last push", status.Sync.LastPush)
		formatter.Item("Last pull", status.Sync.LastPull)
	}
	if totalPending > 0 {
		formatter.Info("Run 'moneta sync' to reconcile now")
	}
	formatter.Println("")

	formatter.SubHeader("Assistant")
	if status.Chat.Configured {
		if status.Chat.Breaker == "TRIPPED" {
			formatter.Item("Primary provider", formatter.Colorize("tripped", output.ColorYellow))
		} else {
			formatter.Item("Primary provider", formatter.Colorize("ok", output.ColorGreen))
		}
	} else {
		formatter.Item("Providers", formatter.Dim("not configured"))
	}

	return nil
}

// networkIndicator returns a colored online/offline marker.
func networkIndicator(formatter *output.Formatter, online bool) string {
	if online {
		return formatter.Colorize("●", output.ColorGreen) + " " + formatter.Colorize("online", output.ColorGreen)
	}
	return formatter.Colorize("●", output.ColorYellow) + " " + formatter.Colorize("offline", output.ColorYellow)
}

// formatPending renders a pending-record count, highlighting non-zero.
func formatPending(formatter *output.Formatter, n int) string {
	if n == 0 {
		return formatter.Dim("up to date")
	}
	return formatter.Colorize(pendingLabel(n), output.ColorYellow)
}

func pendingLabel(n int) string {
	if n == 1 {
		return "1 pending"
	}
	return strconv.Itoa(n) + " pending"
}

func pluralKind(kind ledger.EntityKind) string {
	switch kind {
	case ledger.KindCategory:
		return "Categories"
	case ledger.KindTransaction:
		return "Transactions"
	case ledger.KindBudget:
		return "Budgets"
	}
	return string(kind)
}
