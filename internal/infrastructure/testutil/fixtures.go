// Package testutil provides test fixtures and helpers for testing.
package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// NewTestCategory creates an expense category owned by the local sentinel user.
func NewTestCategory(name string) *ledger.Category {
	return &ledger.Category{
		Envelope: ledger.Envelope{
			SyncStatus:   ledger.StatusPendingUpload,
			LastModified: ledger.NowMillis(),
			UserID:       ledger.LocalUserID,
		},
		Name:  name,
		Icon:  "💸",
		Color: 0xFFE57373,
		Type:  ledger.FlowExpense,
	}
}

// NewTestTransaction creates an expense transaction with the given amount.
func NewTestTransaction(amount string, categoryID *int64) *ledger.Transaction {
	return &ledger.Transaction{
		Envelope: ledger.Envelope{
			SyncStatus:   ledger.StatusPendingUpload,
			LastModified: ledger.NowMillis(),
			UserID:       ledger.LocalUserID,
		},
		Amount:      decimal.RequireFromString(amount),
		Date:        ledger.NowMillis(),
		Description: "test transaction",
		CategoryID:  categoryID,
		Type:        ledger.FlowExpense,
	}
}

// NewTestBudget creates a budget for the given category and month.
func NewTestBudget(categoryID int64, amount string, month, year int) *ledger.Budget {
	return &ledger.Budget{
		Envelope: ledger.Envelope{
			SyncStatus:   ledger.StatusPendingUpload,
			LastModified: ledger.NowMillis(),
			UserID:       ledger.LocalUserID,
		},
		CategoryID: categoryID,
		Amount:     decimal.RequireFromString(amount),
		Month:      month,
		Year:       year,
	}
}

// SyncedEnvelope returns an envelope in the state a record has after a
// successful upload: cloud ID assigned and status SYNCED.
func SyncedEnvelope(cloudID, userID string, lastModified int64) ledger.Envelope {
	return ledger.Envelope{
		CloudID:      cloudID,
		SyncStatus:   ledger.StatusSynced,
		LastModified: lastModified,
		UserID:       userID,
	}
}

// NewUserMessage creates a user chat message for testing.
func NewUserMessage(content string) *ledger.ChatMessage {
	return &ledger.ChatMessage{
		UserID:    ledger.LocalUserID,
		Role:      ledger.ChatRoleUser,
		Content:   content,
		Timestamp: ledger.NowMillis(),
	}
}

// NewAssistantMessage creates an assistant chat message for testing.
func NewAssistantMessage(content string) *ledger.ChatMessage {
	return &ledger.ChatMessage{
		UserID:    ledger.LocalUserID,
		Role:      ledger.ChatRoleAssistant,
		Content:   content,
		Timestamp: ledger.NowMillis(),
	}
}
