package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/thumbcache/*.sql files/meta/*.sql
var migrationFiles embed.FS

// Schema names one of the vault's side databases. Each has its own
// migration history.
type Schema string

const (
	SchemaThumbCache Schema = "thumbcache"
	SchemaMeta       Schema = "meta"
)

// ErrNewerSchema is returned when a database was written by a newer binary.
var ErrNewerSchema = errors.New("database schema is newer than this binary")

// Status describes where a database stands in its schema's history.
type Status struct {
	Current uint // 0 when no migration has run
	Latest  uint
	Dirty   bool
}

// UpToDate reports whether no migration is pending.
func (s Status) UpToDate() bool {
	return !s.Dirty && s.Current == s.Latest
}

func (s Status) String() string {
	switch {
	case s.Dirty:
		return fmt.Sprintf("dirty at version %d", s.Current)
	case s.Current == 0:
		return "not migrated"
	case s.Current < s.Latest:
		return fmt.Sprintf("version %d, %d behind", s.Current, s.Latest-s.Current)
	case s.Current > s.Latest:
		return fmt.Sprintf("version %d, ahead of %d", s.Current, s.Latest)
	}
	return fmt.Sprintf("version %d", s.Current)
}

// ReadStatus reports the schema version of db.
func ReadStatus(db *sql.DB, schema Schema) (Status, error) {
	m, err := open(db, schema)
	if err != nil {
		return Status{}, err
	}
	// m is not closed: that would close the caller's db

	var st Status
	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return Status{}, fmt.Errorf("reading %s schema version: %w", schema, err)
	default:
		st.Current, st.Dirty = current, dirty
	}

	if st.Latest, err = latest(schema); err != nil {
		return Status{}, err
	}
	return st, nil
}

// MigrateUp brings db to the latest version of schema. A database from a
// newer binary is left untouched and reported with ErrNewerSchema.
func MigrateUp(db *sql.DB, schema Schema) error {
	st, err := ReadStatus(db, schema)
	if err != nil {
		return err
	}
	if st.Current > st.Latest {
		return fmt.Errorf("%s: %s: %w", schema, st, ErrNewerSchema)
	}
	if st.UpToDate() {
		return nil
	}

	m, err := open(db, schema)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating %s from %s: %w", schema, st, err)
	}
	return nil
}

func open(db *sql.DB, schema Schema) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files/"+string(schema))
	if err != nil {
		return nil, fmt.Errorf("loading %s migrations: %w", schema, err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating sqlite3 migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating %s migrator: %w", schema, err)
	}
	return m, nil
}

// latest returns the highest migration version shipped for schema.
func latest(schema Schema) (uint, error) {
	src, err := iofs.New(migrationFiles, "files/"+string(schema))
	if err != nil {
		return 0, fmt.Errorf("loading %s migrations: %w", schema, err)
	}
	defer src.Close()
	return lastVersion(src)
}

func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
