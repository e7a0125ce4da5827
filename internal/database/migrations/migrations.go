// Package migrations embeds the catalog schema and applies it with
// golang-migrate.
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

//go:embed files/*.sql
var migrationFiles embed.FS

var (
	// ErrNoSchema is returned for a database that was never migrated.
	ErrNoSchema = errors.New("database has no schema version")
	// ErrDirty is returned when a previous migration stopped halfway.
	ErrDirty = errors.New("database schema is dirty")
	// ErrVersionMismatch is returned when the schema is behind or ahead of
	// the embedded migrations.
	ErrVersionMismatch = errors.New("database schema version mismatch")
)

// CheckDBMigrationStatus returns nil when db is exactly at the latest
// embedded version.
func CheckDBMigrationStatus(db *sql.DB) error {
	version, dirty, err := current(db)
	if err != nil {
		return err
	}
	if version == 0 {
		return ErrNoSchema
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, version)
	}

	latest, err := LatestVersion()
	if err != nil {
		return err
	}
	switch {
	case version < latest:
		return fmt.Errorf("%w: at %d, latest is %d; run a mutating command to migrate", ErrVersionMismatch, version, latest)
	case version > latest:
		return fmt.Errorf("%w: at %d, this binary knows %d; upgrade filmgov", ErrVersionMismatch, version, latest)
	}
	return nil
}

// Version returns the applied schema version, 0 for an unmigrated database.
// It is recorded as the dataset's schema_version.
func Version(db *sql.DB) (uint, error) {
	version, dirty, err := current(db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("%w at version %d", ErrDirty, version)
	}
	return version, nil
}

// LatestVersion returns the newest embedded migration version.
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

// MigrateUp applies all pending migrations. An up-to-date database is not
// an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	// m is not closed: that would close db, which the caller owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func current(db *sql.DB) (uint, bool, error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return version, dirty, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating sqlite3 migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// lastVersion walks the source to its final version; Next fails past the
// end.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no embedded migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
