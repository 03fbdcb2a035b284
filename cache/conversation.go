package cache

import (
	"database/sql"
	"fmt"

	"rerent-chat-client/api"
)

// ReplaceConversations swaps the cached conversation list for the one
// just fetched, preserving the server's ordering
func (c *Cache) ReplaceConversations(conversations []api.Conversation) error {
	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO conversations (id, title, last_message_at, latest_role, latest_content, messages_count, position) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, conv := range conversations {
		var lastMessageAt interface{}
		if conv.LastMessageAt != nil {
			lastMessageAt = conv.LastMessageAt.UTC()
		}
		var role, content string
		if conv.LatestMessage != nil {
			role = conv.LatestMessage.Role
			content = conv.LatestMessage.Content
		}
		if _, err := stmt.Exec(conv.ID, conv.Title, lastMessageAt, role, content, conv.MessagesCount, i); err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversations: %w", err)
	}
	return nil
}

// Conversations returns the cached list in its original server order
func (c *Cache) Conversations() ([]api.Conversation, error) {
	rows, err := c.conn.Query(
		"SELECT id, title, last_message_at, latest_role, latest_content, messages_count FROM conversations ORDER BY position ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []api.Conversation
	for rows.Next() {
		var conv api.Conversation
		var lastMessageAt sql.NullTime
		var role, content string
		if err := rows.Scan(&conv.ID, &conv.Title, &lastMessageAt, &role, &content, &conv.MessagesCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if lastMessageAt.Valid {
			t := lastMessageAt.Time.UTC()
			conv.LastMessageAt = &t
		}
		if role != "" || content != "" {
			conv.LatestMessage = &api.LatestMessage{Role: role, Content: content}
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return conversations, nil
}
