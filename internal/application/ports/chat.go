package ports

import (
	"context"

	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// ChatProviderPort abstracts one assistant backend. The chat service routes
// between a primary and a fallback implementation through a circuit breaker.
type ChatProviderPort interface {
	// Name identifies the provider in logs and breaker state.
	Name() string

	// Send submits the conversation and returns the assistant's reply text.
	Send(ctx context.Context, history []*ledger.ChatMessage, prompt string) (string, error)
}
