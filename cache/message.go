package cache

import (
	"encoding/json"
	"fmt"

	"rerent-chat-client/api"
)

// ReplaceMessages swaps the cached history for one conversation with the
// pages currently loaded, oldest first. Optimistic entries never reach
// the cache; only server-confirmed messages are stored.
func (c *Cache) ReplaceMessages(conversationID int64, messages []api.Message) error {
	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO messages (id, conversation_id, role, content, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		if msg.ID <= 0 {
			// Temporary id, skip
			continue
		}
		metadata := ""
		if len(msg.Metadata) > 0 {
			metadata = string(msg.Metadata)
		}
		if _, err := stmt.Exec(msg.ID, conversationID, msg.Role, msg.Content, metadata, msg.CreatedAt.UTC(), msg.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// Messages returns the cached history for a conversation, oldest first
func (c *Cache) Messages(conversationID int64) ([]api.Message, error) {
	rows, err := c.conn.Query(
		"SELECT id, conversation_id, role, content, metadata, created_at, updated_at FROM messages WHERE conversation_id = ? ORDER BY id ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []api.Message
	for rows.Next() {
		var msg api.Message
		var metadata string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &metadata, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if metadata != "" {
			msg.Metadata = json.RawMessage(metadata)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}
