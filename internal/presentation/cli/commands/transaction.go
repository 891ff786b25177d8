package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// TransactionView is the JSON shape of a transaction.
type TransactionView struct {
	ID          int64  `json:"id"`
	CloudID     string `json:"cloud_id,omitempty"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	CategoryID  *int64 `json:"category_id,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status"`
}

// NewTransactionCmd creates the transaction command group.
func NewTransactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction", "txn"},
		Short:   "Manage transactions",
		Long:    `Record and manage income and expense transactions.`,
	}

	cmd.AddCommand(newTransactionListCmd())
	cmd.AddCommand(newTransactionAddCmd())
	cmd.AddCommand(newTransactionUpdateCmd())
	cmd.AddCommand(newTransactionDeleteCmd())

	return cmd
}

func newTransactionListCmd() *cobra.Command {
	var categoryID int64

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List transactions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			ctx := context.Background()
			userID := container.CurrentUserID()

			var (
				txs []*ledger.Transaction
				err error
			)
			if cmd.Flags().Changed("category") {
				txs, err = container.Transactions().ListByCategory(ctx, userID, categoryID)
			} else {
				txs, err = container.Transactions().List(ctx, userID)
			}
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			categoryNames := loadCategoryNames(ctx)

			views := make([]TransactionView, 0, len(txs))
			rows := make([][]string, 0, len(txs))
			for _, tx := range txs {
				views = append(views, transactionView(tx))
				rows = append(rows, []string{
					strconv.FormatInt(tx.LocalID, 10),
					formatDate(tx.Date),
					strings.ToLower(string(tx.Type)),
					tx.Amount.StringFixed(2),
					categoryLabel(tx.CategoryID, categoryNames),
					tx.Description,
					statusLabel(tx.SyncStatus),
				})
			}

			return GetFormatter().FormatAuto(views, &output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID", Align: output.AlignRight},
					{Header: "DATE"},
					{Header: "TYPE"},
					{Header: "AMOUNT", Align: output.AlignRight},
					{Header: "CATEGORY"},
					{Header: "DESCRIPTION"},
					{Header: "SYNC"},
				},
				Rows: rows,
			})
		},
	}

	cmd.Flags().Int64Var(&categoryID, "category", 0, "only transactions in this category")

	return cmd
}

func newTransactionAddCmd() *cobra.Command {
	var (
		amount      string
		date        string
		description string
		categoryID  int64
		flowType    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: `  moneta tx add --amount 12.50 --desc "Lunch" --category 1
  moneta tx add --amount 2500 --type income --desc "Salary" --date 2026-09-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			flow, err := parseFlowType(flowType)
			if err != nil {
				return err
			}
			when, err := parseDate(date)
			if err != nil {
				return err
			}

			tx := &ledger.Transaction{
				Envelope:    ledger.Envelope{UserID: container.CurrentUserID()},
				Amount:      amt,
				Date:        when,
				Description: description,
				Type:        flow,
			}
			if cmd.Flags().Changed("category") {
				tx.CategoryID = &categoryID
			}
			if err := tx.Validate(); err != nil {
				return err
			}

			id, err := container.Transactions().Create(context.Background(), tx)
			if err != nil {
				return fmt.Errorf("failed to create transaction: %w", err)
			}

			formatter := GetFormatter()
			if formatter.Format() == output.FormatJSON {
				tx.LocalID = id
				return formatter.JSON(transactionView(tx))
			}
			formatter.Success("Transaction recorded (id %d): %s %s", id, strings.ToLower(string(flow)), amt.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount, always positive (required)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&description, "desc", "", "description")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	cmd.Flags().StringVarP(&flowType, "type", "t", "expense", "transaction type: income, expense")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newTransactionUpdateCmd() *cobra.Command {
	var (
		amount      string
		date        string
		description string
		categoryID  int64
		flowType    string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			tx, err := container.Transactions().Get(ctx, container.CurrentUserID(), id)
			if err != nil {
				return fmt.Errorf("failed to load transaction %d: %w", id, err)
			}

			if cmd.Flags().Changed("amount") {
				amt, err := parseAmount(amount)
				if err != nil {
					return err
				}
				tx.Amount = amt
			}
			if cmd.Flags().Changed("date") {
				when, err := parseDate(date)
				if err != nil {
					return err
				}
				tx.Date = when
			}
			if cmd.Flags().Changed("desc") {
				tx.Description = description
			}
			if cmd.Flags().Changed("category") {
				if categoryID == 0 {
					tx.CategoryID = nil
				} else {
					tx.CategoryID = &categoryID
				}
			}
			if cmd.Flags().Changed("type") {
				flow, err := parseFlowType(flowType)
				if err != nil {
					return err
				}
				tx.Type = flow
			}
			if err := tx.Validate(); err != nil {
				return err
			}

			if err := container.Transactions().Update(ctx, tx); err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}

			GetFormatter().Success("Transaction %d updated", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&description, "desc", "", "description")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id (0 clears the category)")
	cmd.Flags().StringVarP(&flowType, "type", "t", "", "transaction type: income, expense")

	return cmd
}

func newTransactionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a transaction",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := container.Transactions().Delete(context.Background(), container.CurrentUserID(), id); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}

			GetFormatter().Success("Transaction %d deleted", id)
			return nil
		},
	}
}

// transactionView maps a transaction to its JSON shape.
func transactionView(tx *ledger.Transaction) TransactionView {
	return TransactionView{
		ID:          tx.LocalID,
		CloudID:     tx.CloudID,
		Amount:      tx.Amount.String(),
		Date:        formatDate(tx.Date),
		Description: tx.Description,
		CategoryID:  tx.CategoryID,
		Type:        strings.ToLower(string(tx.Type)),
		Status:      string(tx.SyncStatus),
	}
}

// loadCategoryNames builds an id-to-name index for table rendering. A
// lookup failure just leaves categories unnamed.
func loadCategoryNames(ctx context.Context) map[int64]string {
	names := map[int64]string{}
	c := GetContainer()
	if c == nil {
		return names
	}
	cats, err := c.Categories().List(ctx, c.CurrentUserID())
	if err != nil {
		return names
	}
	for _, cat := range cats {
		names[cat.LocalID] = cat.Name
	}
	return names
}

// categoryLabel renders a transaction's category for tables.
func categoryLabel(id *int64, names map[int64]string) string {
	if id == nil {
		return "-"
	}
	if name, ok := names[*id]; ok {
		return name
	}
	return "#" + strconv.FormatInt(*id, 10)
}

// parseAmount parses a positive decimal amount.
func parseAmount(s string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if amt.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative (the type carries the direction)")
	}
	return amt, nil
}

// parseDate parses a YYYY-MM-DD date into epoch millis at local midnight.
// An empty string means now.
func parseDate(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return ledger.NowMillis(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.Local)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return t.UnixMilli(), nil
}

// formatDate renders an epoch-millis timestamp as a date.
func formatDate(ms int64) string {
	return time.UnixMilli(ms).Format(time.DateOnly)
}
