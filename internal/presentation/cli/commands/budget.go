package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// BudgetView is the JSON shape of a budget with its consumption.
type BudgetView struct {
	ID         int64  `json:"id"`
	CloudID    string `json:"cloud_id,omitempty"`
	CategoryID int64  `json:"category_id"`
	Category   string `json:"category,omitempty"`
	Amount     string `json:"amount"`
	Spent      string `json:"spent"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	Status     string `json:"status"`
}

// NewBudgetCmd creates the budget command group.
func NewBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage monthly category budgets",
		Long: `Manage monthly spending caps per category.

A budget caps expenses for one category in one calendar month. The
list view shows how much of each cap the month's transactions have
consumed.`,
	}

	cmd.AddCommand(newBudgetListCmd())
	cmd.AddCommand(newBudgetSetCmd())
	cmd.AddCommand(newBudgetDeleteCmd())

	return cmd
}

func newBudgetListCmd() *cobra.Command {
	var (
		month int
		year  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List budgets for a month",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			if month == 0 {
				month = int(time.Now().Month())
			}
			if year == 0 {
				year = time.Now().Year()
			}

			ctx := context.Background()
			userID := container.CurrentUserID()

			budgets, err := container.Budgets().ListForMonth(ctx, userID, month, year)
			if err != nil {
				return fmt.Errorf("failed to list budgets: %w", err)
			}

			spent, err := spentByCategory(ctx, userID, month, year)
			if err != nil {
				return fmt.Errorf("failed to total transactions: %w", err)
			}
			categoryNames := loadCategoryNames(ctx)

			formatter := GetFormatter()

			views := make([]BudgetView, 0, len(budgets))
			rows := make([][]string, 0, len(budgets))
			for _, b := range budgets {
				used := spent[b.CategoryID]
				views = append(views, budgetView(b, used, categoryNames))
				rows = append(rows, []string{
					strconv.FormatInt(b.LocalID, 10),
					categoryLabel(&b.CategoryID, categoryNames),
					used.StringFixed(2),
					b.Amount.StringFixed(2),
					budgetGauge(formatter, used, b.Amount),
					statusLabel(b.SyncStatus),
				})
			}

			if formatter.Format() != output.FormatJSON {
				formatter.Header(fmt.Sprintf("Budgets %04d-%02d", year, month))
			}
			return formatter.FormatAuto(views, &output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID", Align: output.AlignRight},
					{Header: "CATEGORY"},
					{Header: "SPENT", Align: output.AlignRight},
					{Header: "LIMIT", Align: output.AlignRight},
					{Header: "USAGE"},
					{Header: "SYNC"},
				},
				Rows: rows,
			})
		},
	}

	cmd.Flags().IntVarP(&month, "month", "m", 0, "month 1-12 (default: current)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "year (default: current)")

	return cmd
}

func newBudgetSetCmd() *cobra.Command {
	var (
		categoryID int64
		amount     string
		month      int
		year       int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a monthly budget for a category",
		Example: `  moneta budget set --category 1 --amount 400
  moneta budget set --category 2 --amount 150 --month 10 --year 2026`,
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
			if month == 0 {
				month = int(time.Now().Month())
			}
			if year == 0 {
				year = time.Now().Year()
			}

			ctx := context.Background()
			userID := container.CurrentUserID()

			// An existing budget for the same category and month is updated in
			// place rather than duplicated.
			existing, err := container.Budgets().ListForMonth(ctx, userID, month, year)
			if err != nil {
				return fmt.Errorf("failed to list budgets: %w", err)
			}
			for _, b := range existing {
				if b.CategoryID == categoryID {
					b.Amount = amt
					if err := container.Budgets().Update(ctx, b); err != nil {
						return fmt.Errorf("failed to update budget: %w", err)
					}
					GetFormatter().Success("Budget %d updated: %s for %04d-%02d", b.LocalID, amt.StringFixed(2), year, month)
					return nil
				}
			}

			budget := &ledger.Budget{
				Envelope:   ledger.Envelope{UserID: userID},
				CategoryID: categoryID,
				Amount:     amt,
				Month:      month,
				Year:       year,
			}
			if err := budget.Validate(); err != nil {
				return err
			}

			id, err := container.Budgets().Create(ctx, budget)
			if err != nil {
				return fmt.Errorf("failed to create budget: %w", err)
			}

			GetFormatter().Success("Budget set (id %d): %s for %04d-%02d", id, amt.StringFixed(2), year, month)
			return nil
		},
	}

	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id (required)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "monthly spending cap (required)")
	cmd.Flags().IntVarP(&month, "month", "m", 0, "month 1-12 (default: current)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "year (default: current)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newBudgetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a budget",
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

			if err := container.Budgets().Delete(context.Background(), container.CurrentUserID(), id); err != nil {
				return fmt.Errorf("failed to delete budget: %w", err)
			}

			GetFormatter().Success("Budget %d deleted", id)
			return nil
		},
	}
}

// budgetView maps a budget to its JSON shape.
func budgetView(b *ledger.Budget, spent decimal.Decimal, names map[int64]string) BudgetView {
	return BudgetView{
		ID:         b.LocalID,
		CloudID:    b.CloudID,
		CategoryID: b.CategoryID,
		Category:   names[b.CategoryID],
		Amount:     b.Amount.String(),
		Spent:      spent.String(),
		Month:      b.Month,
		Year:       b.Year,
		Status:     string(b.SyncStatus),
	}
}

// spentByCategory totals the month's expense transactions per category.
func spentByCategory(ctx context.Context, userID string, month, year int) (map[int64]decimal.Decimal, error) {
	container := GetContainer()
	txs, err := container.Transactions().List(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := map[int64]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != ledger.FlowExpense || tx.CategoryID == nil {
			continue
		}
		when := time.UnixMilli(tx.Date)
		if int(when.Month()) != month || when.Year() != year {
			continue
		}
		totals[*tx.CategoryID] = totals[*tx.CategoryID].Add(tx.Amount)
	}
	return totals, nil
}

// budgetGauge renders spent-versus-limit as a colored percentage.
func budgetGauge(formatter *output.Formatter, spent, limit decimal.Decimal) string {
	if limit.IsZero() {
		return formatter.Dim("-")
	}
	ratio, _ := spent.Div(limit).Float64()
	pct := fmt.Sprintf("%3.0f%%", ratio*100)
	switch {
	case ratio >= 1:
		return formatter.Colorize(pct, output.ColorRed)
	case ratio >= 0.8:
		return formatter.Colorize(pct, output.ColorYellow)
	default:
		return formatter.Colorize(pct, output.ColorGreen)
	}
}
