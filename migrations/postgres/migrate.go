// Package postgres embeds and applies the ledger's Postgres schema
// migrations via golang-migrate/migrate/v4, the teacher's own choice of
// migration tool for its channeldb SQL backends.
package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxdriver "github.com/golang-migrate/migrate/v4/database/pgx/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/chronocoders/ecash/ecashlog"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

var log = ecashlog.SubLogger(ecashlog.SubsystemServer)

// Migrate runs every pending up migration against db, which must already
// be open against the "pgx" driver.
func Migrate(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("migrations/postgres: loading embedded sql: %w", err)
	}

	dbDriver, err := pgxdriver.WithInstance(db, &pgxdriver.Config{})
	if err != nil {
		return fmt.Errorf("migrations/postgres: wrapping db handle: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("migrations/postgres: constructing migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations/postgres: applying migrations: %w", err)
	}

	log.Infof("migrations/postgres: schema up to date")
	return nil
}
