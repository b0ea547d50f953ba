package localcache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// SQLite keeps expense category names in a local database file so they
// survive restarts.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) the cache at path.
// ":memory:" gives a private in-memory cache.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open category cache: %w", err)
	}
	// One writer at a time; also keeps ":memory:" to a single database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open category cache: %w", err)
	}

	c := &SQLite{conn: conn}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLite) migrate() error {
	_, err := c.conn.Exec(`CREATE TABLE IF NOT EXISTS expense_categories (
		expense_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to migrate category cache: %w", err)
	}
	return nil
}

// Load returns the cached names for the given expense ids. Ids with no entry
// are absent from the result.
func (c *SQLite) Load(ctx context.Context, expenseIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(expenseIDs))
	if len(expenseIDs) == 0 {
		return names, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(expenseIDs)), ",")
	args := make([]any, len(expenseIDs))
	for i, id := range expenseIDs {
		args[i] = id
	}

	rows, err := c.conn.QueryContext(ctx,
		`SELECT expense_id, name FROM expense_categories WHERE expense_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan cached category: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Set stores name for expenseID, replacing any previous entry.
func (c *SQLite) Set(ctx context.Context, expenseID, name string) error {
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO expense_categories (expense_id, name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (expense_id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		expenseID, name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache category: %w", err)
	}
	return nil
}

func (c *SQLite) Delete(ctx context.Context, expenseID string) error {
	if _, err := c.conn.ExecContext(ctx, `DELETE FROM expense_categories WHERE expense_id = ?`, expenseID); err != nil {
		return fmt.Errorf("failed to drop cached category: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cached categories: %w", err)
	}
	return n, nil
}

func (c *SQLite) Close() error {
	return c.conn.Close()
}
