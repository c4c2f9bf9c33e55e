package database

import (
	"database/sql"
	"fmt"

	"pinvault/internal/database/migrations"
	"pinvault/internal/pv"
)

// MetaDB holds per-item metadata captured at import, kept in meta.db.
type MetaDB struct {
	db   *sql.DB
	path string
}

// NewMetaDB opens (and migrates) the metadata database at path.
func NewMetaDB(path string) (*MetaDB, error) {
	db, err := openMigrated(path, migrations.SchemaMeta)
	if err != nil {
		return nil, err
	}
	return &MetaDB{db: db, path: path}, nil
}

func (m *MetaDB) PutLocation(loc pv.Location) error {
	_, err := m.db.Exec(`
		INSERT INTO locations (id, latitude, longitude) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET latitude = excluded.latitude, longitude = excluded.longitude`,
		loc.ID, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("putting location: %w", err)
	}
	return nil
}

func (m *MetaDB) DeleteLocations(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM locations WHERE id IN (" + placeholders(len(ids)) + ")"
	if _, err := m.db.Exec(query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("deleting locations: %w", err)
	}
	return nil
}

func (m *MetaDB) Locations() ([]pv.Location, error) {
	rows, err := m.db.Query("SELECT id, latitude, longitude FROM locations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locs []pv.Location
	for rows.Next() {
		var loc pv.Location
		if err := rows.Scan(&loc.ID, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// Close closes the database connection.
func (m *MetaDB) Close() error {
	return m.db.Close()
}

// Compile-time check that MetaDB implements pv.MetaStore interface
var _ pv.MetaStore = (*MetaDB)(nil)
