package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pinvault/internal/database/migrations"
	"pinvault/internal/pv"
)

// ThumbCacheDB is the persistent id -> preview location map kept in
// thumb_cache.db.
type ThumbCacheDB struct {
	db   *sql.DB
	path string
}

// NewThumbCacheDB opens (and migrates) the thumbnail cache at path.
func NewThumbCacheDB(path string) (*ThumbCacheDB, error) {
	db, err := openMigrated(path, migrations.SchemaThumbCache)
	if err != nil {
		return nil, err
	}
	return &ThumbCacheDB{db: db, path: path}, nil
}

// Get returns the entry for id, or nil if none is recorded.
func (c *ThumbCacheDB) Get(id string) (*pv.ThumbnailEntry, error) {
	var entry pv.ThumbnailEntry
	var generated int64
	err := c.db.QueryRow("SELECT id, location, generated_at FROM thumbs WHERE id = ?", id).
		Scan(&entry.ID, &entry.Location, &generated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting thumbnail entry: %w", err)
	}
	entry.GeneratedAt = time.UnixMilli(generated).UTC()
	return &entry, nil
}

// Put records or replaces the entry for entry.ID.
func (c *ThumbCacheDB) Put(entry pv.ThumbnailEntry) error {
	_, err := c.db.Exec(`
		INSERT INTO thumbs (id, location, generated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET location = excluded.location, generated_at = excluded.generated_at`,
		entry.ID, entry.Location, entry.GeneratedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("putting thumbnail entry: %w", err)
	}
	return nil
}

// Delete removes the entries for ids. Unknown ids are ignored.
func (c *ThumbCacheDB) Delete(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM thumbs WHERE id IN (" + placeholders(len(ids)) + ")"
	if _, err := c.db.Exec(query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("deleting thumbnail entries: %w", err)
	}
	return nil
}

// All returns every entry ordered by id.
func (c *ThumbCacheDB) All() ([]pv.ThumbnailEntry, error) {
	rows, err := c.db.Query("SELECT id, location, generated_at FROM thumbs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing thumbnail entries: %w", err)
	}
	defer rows.Close()

	var entries []pv.ThumbnailEntry
	for rows.Next() {
		var entry pv.ThumbnailEntry
		var generated int64
		if err := rows.Scan(&entry.ID, &entry.Location, &generated); err != nil {
			return nil, fmt.Errorf("scanning thumbnail entry: %w", err)
		}
		entry.GeneratedAt = time.UnixMilli(generated).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (c *ThumbCacheDB) Close() error {
	return c.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// Compile-time check that ThumbCacheDB implements pv.ThumbnailCache interface
var _ pv.ThumbnailCache = (*ThumbCacheDB)(nil)
