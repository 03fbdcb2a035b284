// Package cache keeps a local SQLite mirror of the conversations and
// message pages last fetched from the server, so a reopened widget can
// render immediately while the refetch is still in flight. The server
// stays the source of truth; the cache is replaced wholesale on every
// successful fetch and never written back.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Cache wraps the SQLite connection
type Cache struct {
	conn *sql.DB
}

// Open creates or opens the cache database at the given path
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	c := &Cache{conn: conn}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return c, nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	return c.conn.Close()
}

// migrate creates the schema. Ids are server-assigned, never generated
// locally.
func (c *Cache) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			last_message_at DATETIME,
			latest_role TEXT NOT NULL DEFAULT '',
			latest_content TEXT NOT NULL DEFAULT '',
			messages_count INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id, id)`,
	}

	for _, migration := range migrations {
		if _, err := c.conn.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	return nil
}

// Clear drops all cached data, used on logout
func (c *Cache) Clear() error {
	for _, table := range []string{"messages", "conversations"} {
		if _, err := c.conn.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
