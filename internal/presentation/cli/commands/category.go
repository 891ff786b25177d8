package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// CategoryView is the JSON shape of a category.
type CategoryView struct {
	ID     int64  `json:"id"`
	CloudID string `json:"cloud_id,omitempty"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Color  string `json:"color"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// NewCategoryCmd creates the category command group.
func NewCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage spending and income categories",
		Long: `Manage the categories that group transactions and budgets.

Deleting a category keeps its transactions (they become uncategorized)
and removes its budgets.`,
	}

	cmd.AddCommand(newCategoryListCmd())
	cmd.AddCommand(newCategoryAddCmd())
	cmd.AddCommand(newCategoryUpdateCmd())
	cmd.AddCommand(newCategoryDeleteCmd())

	return cmd
}

func newCategoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			cats, err := container.Categories().List(context.Background(), container.CurrentUserID())
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			views := make([]CategoryView, 0, len(cats))
			rows := make([][]string, 0, len(cats))
			for _, c := range cats {
				views = append(views, categoryView(c))
				rows = append(rows, []string{
					strconv.FormatInt(c.LocalID, 10),
					c.Icon + " " + c.Name,
					strings.ToLower(string(c.Type)),
					colorHex(c.Color),
					statusLabel(c.SyncStatus),
				})
			}

			return GetFormatter().FormatAuto(views, &output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID", Align: output.AlignRight},
					{Header: "NAME"},
					{Header: "TYPE"},
					{Header: "COLOR"},
					{Header: "SYNC"},
				},
				Rows: rows,
			})
		},
	}
}

func newCategoryAddCmd() *cobra.Command {
	var (
		name      string
		icon      string
		colorSpec string
		flowType  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a category",
		Example: `  moneta category add --name Groceries --icon 🛒 --type expense
  moneta category add --name Salary --type income --color '#4ECDC4'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			flow, err := parseFlowType(flowType)
			if err != nil {
				return err
			}
			color, err := parseColor(colorSpec)
			if err != nil {
				return err
			}

			cat := &ledger.Category{
				Envelope: ledger.Envelope{UserID: container.CurrentUserID()},
				Name:     name,
				Icon:     icon,
				Color:    color,
				Type:     flow,
			}
			if err := cat.Validate(); err != nil {
				return err
			}

			id, err := container.Categories().Create(context.Background(), cat)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			formatter := GetFormatter()
			if formatter.Format() == output.FormatJSON {
				cat.LocalID = id
				return formatter.JSON(categoryView(cat))
			}
			formatter.Success("Category %q created (id %d)", name, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "category name (required)")
	cmd.Flags().StringVar(&icon, "icon", "", "emoji or glyph")
	cmd.Flags().StringVar(&colorSpec, "color", "#808080", "display color as hex, e.g. '#FF6B6B'")
	cmd.Flags().StringVarP(&flowType, "type", "t", "expense", "category type: income, expense")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newCategoryUpdateCmd() *cobra.Command {
	var (
		name      string
		icon      string
		colorSpec string
		flowType  string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a category",
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
			cat, err := container.Categories().Get(ctx, container.CurrentUserID(), id)
			if err != nil {
				return fmt.Errorf("failed to load category %d: %w", id, err)
			}

			if cmd.Flags().Changed("name") {
				cat.Name = name
			}
			if cmd.Flags().Changed("icon") {
				cat.Icon = icon
			}
			if cmd.Flags().Changed("color") {
				color, err := parseColor(colorSpec)
				if err != nil {
					return err
				}
				cat.Color = color
			}
			if cmd.Flags().Changed("type") {
				flow, err := parseFlowType(flowType)
				if err != nil {
					return err
				}
				cat.Type = flow
			}
			if err := cat.Validate(); err != nil {
				return err
			}

			if err := container.Categories().Update(ctx, cat); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			GetFormatter().Success("Category %d updated", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "category name")
	cmd.Flags().StringVar(&icon, "icon", "", "emoji or glyph")
	cmd.Flags().StringVar(&colorSpec, "color", "", "display color as hex")
	cmd.Flags().StringVarP(&flowType, "type", "t", "", "category type: income, expense")

	return cmd
}

func newCategoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a category",
		Long: `Delete a category.

Transactions in the category become uncategorized and its budgets are
removed. If the category has been uploaded, the cloud copy is deleted
on the next sync cycle.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := container.Categories().Delete(context.Background(), container.CurrentUserID(), id); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			GetFormatter().Success("Category %d deleted", id)
			return nil
		},
	}
}

// categoryView maps a category to its JSON shape.
func categoryView(c *ledger.Category) CategoryView {
	return CategoryView{
		ID:      c.LocalID,
		CloudID: c.CloudID,
		Name:    c.Name,
		Icon:    c.Icon,
		Color:   colorHex(c.Color),
		Type:    strings.ToLower(string(c.Type)),
		Status:  string(c.SyncStatus),
	}
}

// parseID parses a positional record ID argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}

// parseFlowType maps the CLI spelling to the domain flow type.
func parseFlowType(s string) (ledger.FlowType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "in":
		return ledger.FlowIncome, nil
	case "expense", "out":
		return ledger.FlowExpense, nil
	}
	return "", fmt.Errorf("invalid type %q (must be income or expense)", s)
}

// parseColor parses '#RRGGBB' or '#AARRGGBB' into a packed ARGB value.
// A six-digit color gets an opaque alpha channel.
func parseColor(s string) (int64, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 6:
		hex = "FF" + hex
	case 8:
	default:
		return 0, fmt.Errorf("invalid color %q (use '#RRGGBB' or '#AARRGGBB')", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return int64(v), nil
}

// colorHex renders a packed ARGB color as '#AARRGGBB'.
func colorHex(c int64) string {
	return fmt.Sprintf("#%08X", uint32(c))
}

// statusLabel renders a sync status compactly for tables.
func statusLabel(s ledger.SyncStatus) string {
	switch s {
	case ledger.StatusSynced:
		return "synced"
	case ledger.StatusPendingUpload:
		return "pending"
	case ledger.StatusPendingDelete:
		return "deleting"
	case ledger.StatusConflict:
		return "conflict"
	}
	return string(s)
}
