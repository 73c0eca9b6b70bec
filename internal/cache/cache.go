// Package cache persists a small snapshot of the conversation list and
// unread counters so a restarted client can paint something sensible
// before the first directory fetch completes. The directory remains the
// source of truth; the cache is written through on every refresh.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weftlabs/weft/internal/directory"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	is_group INTEGER NOT NULL DEFAULT 0,
	unread INTEGER NOT NULL DEFAULT 0,
	last_message_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Snapshot is everything the cache holds.
type Snapshot struct {
	Conversations []directory.Conversation
	GlobalUnread  int
	FetchedAt     time.Time
}

// Cache is a sqlite-backed snapshot store.
type Cache struct {
	db *sql.DB
}

// Open opens (and migrates) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Store replaces the cached snapshot.
func (c *Cache) Store(snap Snapshot) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	for _, conv := range snap.Conversations {
		isGroup := 0
		if conv.IsGroup {
			isGroup = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO conversations (id, name, is_group, unread, last_message_at) VALUES (?, ?, ?, ?, ?)`,
			conv.ID, conv.Name, isGroup, conv.UnreadCount, conv.LastMessageAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert conversation %s: %w", conv.ID, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES ('global_unread', ?), ('fetched_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(snap.GlobalUnread), fmt.Sprint(snap.FetchedAt.UnixMilli()),
	); err != nil {
		return fmt.Errorf("store meta: %w", err)
	}
	return tx.Commit()
}

// Load returns the cached snapshot; ok is false if nothing was ever
// stored.
func (c *Cache) Load() (Snapshot, bool, error) {
	var snap Snapshot

	rows, err := c.db.Query(`SELECT id, name, is_group, unread, last_message_at FROM conversations ORDER BY last_message_at DESC`)
	if err != nil {
		return snap, false, fmt.Errorf("load conversations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var conv directory.Conversation
		var isGroup int
		var lastMillis int64
		if err := rows.Scan(&conv.ID, &conv.Name, &isGroup, &conv.UnreadCount, &lastMillis); err != nil {
			return snap, false, fmt.Errorf("scan conversation: %w", err)
		}
		conv.IsGroup = isGroup != 0
		if lastMillis != 0 {
			conv.LastMessageAt = time.UnixMilli(lastMillis)
		}
		snap.Conversations = append(snap.Conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return snap, false, fmt.Errorf("iterate conversations: %w", err)
	}

	var fetched int64
	err = c.db.QueryRow(`SELECT value FROM meta WHERE key = 'fetched_at'`).Scan(&fetched)
	if err == sql.ErrNoRows {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("load meta: %w", err)
	}
	snap.FetchedAt = time.UnixMilli(fetched)

	if err := c.db.QueryRow(`SELECT value FROM meta WHERE key = 'global_unread'`).Scan(&snap.GlobalUnread); err != nil && err != sql.ErrNoRows {
		return snap, false, fmt.Errorf("load global unread: %w", err)
	}
	return snap, true, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
