package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"pinvault/internal/database/migrations"
)

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Thumbnail workers write from several goroutines; a single connection
	// serializes them and keeps ":memory:" databases from splitting per
	// connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// openMigrated opens path and brings schema up to date.
func openMigrated(path string, schema migrations.Schema) (*sql.DB, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s database: %w", schema, err)
	}
	return db, nil
}
