package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/monetalabs/moneta/internal/domain/errors"
)

// FlowType distinguishes money coming in from money going out.
type FlowType string

const (
	FlowIncome  FlowType = "INCOME"
	FlowExpense FlowType = "EXPENSE"
)

// Valid reports whether t is a known flow type.
func (t FlowType) Valid() bool {
	return t == FlowIncome || t == FlowExpense
}

// Category groups transactions and budgets. Deleting a category nulls the
// category reference on its transactions and deletes its budgets; that
// integrity is local-only, each kind syncs independently.
type Category struct {
	Envelope
	Name  string   // Display name, unique per user in practice but not enforced
	Icon  string   // Emoji or glyph name
	Color int64    // Packed ARGB display color
	Type  FlowType // Income or expense category
}

// Validate checks the category's own fields, not its sync envelope.
func (c *Category) Validate() error {
	if c.Name == "" {
		return errors.ErrCategoryNameRequired
	}
	if !c.Type.Valid() {
		return errors.NewError(errors.CodeValidation, "unknown category type: "+string(c.Type), nil)
	}
	return nil
}

// Transaction is a single income or expense event.
type Transaction struct {
	Envelope
	Amount      decimal.Decimal // Always positive; Type carries the direction
	Date        int64           // Occurrence time, epoch millis
	Description string
	CategoryID  *int64 // Local category ID, nil when uncategorized
	Type        FlowType
}

// Validate checks the transaction's own fields.
func (t *Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return errors.ErrAmountNegative
	}
	if !t.Type.Valid() {
		return errors.NewError(errors.CodeValidation, "unknown transaction type: "+string(t.Type), nil)
	}
	return nil
}

// Budget caps spending for one category in one calendar month.
type Budget struct {
	Envelope
	CategoryID int64
	Amount     decimal.Decimal // Ceiling for the month
	Month      int             // 1-12
	Year       int
}

// Validate checks the budget's own fields.
func (b *Budget) Validate() error {
	if b.CategoryID == 0 {
		return errors.ErrBudgetCategoryRequired
	}
	if b.Amount.IsNegative() {
		return errors.ErrAmountNegative
	}
	if b.Month < 1 || b.Month > 12 {
		return errors.ErrBudgetMonthRange
	}
	return nil
}

// ChatRole identifies the author of a chat log entry.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one entry in the local chat log. It carries no sync
// envelope semantics beyond ownership: the chat log never syncs.
type ChatMessage struct {
	LocalID   int64
	UserID    string
	Role      ChatRole
	Content   string
	Timestamp int64 // Epoch millis
	IsError   bool  // Marks failed assistant turns so the UI can style them
}
