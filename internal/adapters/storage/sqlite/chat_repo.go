package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// Compile-time check that ChatRepository implements ChatLogPort.
var _ ports.ChatLogPort = (*ChatRepository)(nil)

// ChatRepository implements ChatLogPort using SQLite. The chat log is
// local-only and never enters a sync cycle.
type ChatRepository struct {
	db *sql.DB
}

// NewChatRepository creates a new chat log repository.
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Append persists a chat message and returns its local ID.
func (r *ChatRepository) Append(ctx context.Context, msg *ledger.ChatMessage) (int64, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = ledger.NowMillis()
	}
	if msg.UserID == "" {
		msg.UserID = ledger.LocalUserID
	}

	query := `
		INSERT INTO chat_messages (user_id, role, content, timestamp, is_error)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		msg.UserID, string(msg.Role), msg.Content, msg.Timestamp, msg.IsError,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append chat message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read chat message id: %w", err)
	}

	msg.LocalID = id
	return id, nil
}

// History returns the most recent messages in chronological order.
// A limit of zero or less returns the full log.
func (r *ChatRepository) History(ctx context.Context, userID string, limit int) ([]*ledger.ChatMessage, error) {
	query := `
		SELECT local_id, user_id, role, content, timestamp, is_error
		FROM chat_messages
		WHERE user_id = ?
		ORDER BY timestamp DESC, local_id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	var messages []*ledger.ChatMessage
	for rows.Next() {
		var (
			msg  ledger.ChatMessage
			role string
		)
		if err := rows.Scan(&msg.LocalID, &msg.UserID, &role, &msg.Content, &msg.Timestamp, &msg.IsError); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Role = ledger.ChatRole(role)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse the newest-first query result into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// Clear deletes the user's entire chat log.
func (r *ChatRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
