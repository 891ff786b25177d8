package firebridge

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// Wire types for the sync API. Amounts travel as strings so decimal values
// survive the round trip exactly. The document ID lives outside the payload
// on create and inside it on reads.

// categoryDoc is the wire representation of a category.
type categoryDoc struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	Color        int64  `json:"color,omitempty"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
}

// transactionDoc is the wire representation of a transaction. The local
// category reference is device-scoped and deliberately absent.
type transactionDoc struct {
	ID           string `json:"id,omitempty"`
	Amount       string `json:"amount"`
	Date         int64  `json:"date"`
	Description  string `json:"description,omitempty"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
}

// budgetDoc is the wire representation of a budget. Like transactionDoc,
// the local category reference is device-scoped and stays off the wire; a
// budget pulled onto a fresh device arrives uncategorized.
type budgetDoc struct {
	ID           string `json:"id,omitempty"`
	Amount       string `json:"amount"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	LastModified int64  `json:"lastModified"`
}

// createResponse is returned by document creation.
type createResponse struct {
	ID string `json:"id"`
}

// listResponse wraps a full collection fetch.
type listResponse[D any] struct {
	Documents []D `json:"documents"`
}

// errorResponse is the API's error payload.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func encodeCategory(c *ledger.Category) categoryDoc {
	return categoryDoc{
		Name:         c.Name,
		Icon:         c.Icon,
		Color:        c.Color,
		Type:         string(c.Type),
		LastModified: c.LastModified,
	}
}

func decodeCategory(doc categoryDoc, userID string) (*ledger.Category, error) {
	return &ledger.Category{
		Envelope: ledger.Envelope{
			CloudID:      doc.ID,
			SyncStatus:   ledger.StatusSynced,
			LastModified: doc.LastModified,
			UserID:       userID,
		},
		Name:  doc.Name,
		Icon:  doc.Icon,
		Color: doc.Color,
		Type:  ledger.FlowType(doc.Type),
	}, nil
}

func encodeTransaction(t *ledger.Transaction) transactionDoc {
	return transactionDoc{
		Amount:       t.Amount.String(),
		Date:         t.Date,
		Description:  t.Description,
		Type:         string(t.Type),
		LastModified: t.LastModified,
	}
}

func decodeTransaction(doc transactionDoc, userID string) (*ledger.Transaction, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in document %s: %w", doc.Amount, doc.ID, err)
	}
	return &ledger.Transaction{
		Envelope: ledger.Envelope{
			CloudID:      doc.ID,
			SyncStatus:   ledger.StatusSynced,
			LastModified: doc.LastModified,
			UserID:       userID,
		},
		Amount:      amount,
		Date:        doc.Date,
		Description: doc.Description,
		Type:        ledger.FlowType(doc.Type),
	}, nil
}

func encodeBudget(b *ledger.Budget) budgetDoc {
	return budgetDoc{
		Amount:       b.Amount.String(),
		Month:        b.Month,
		Year:         b.Year,
		LastModified: b.LastModified,
	}
}

func decodeBudget(doc budgetDoc, userID string) (*ledger.Budget, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in document %s: %w", doc.Amount, doc.ID, err)
	}
	return &ledger.Budget{
		Envelope: ledger.Envelope{
			CloudID:      doc.ID,
			SyncStatus:   ledger.StatusSynced,
			LastModified: doc.LastModified,
			UserID:       userID,
		},
		Amount:     amount,
		Month:      doc.Month,
		Year:       doc.Year,
	}, nil
}
