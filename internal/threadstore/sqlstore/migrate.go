package sqlstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"database/sql"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// RunMigrations applies every pending migration for dialect against db,
// using golang-migrate's embedded-filesystem source driver rather than
// hand-rolled CREATE TABLE IF NOT EXISTS calls (spec.md §6 [NEW]).
func RunMigrations(db *sql.DB, dialect Dialect) error {
	var (
		sub    embed.FS
		prefix string
		driver migrate.DatabaseDriver
		err    error
	)

	switch dialect {
	case DialectPostgres:
		sub, prefix = postgresMigrations, "migrations/postgres"
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case DialectSQLite:
		sub, prefix = sqliteMigrations, "migrations/sqlite"
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return fmt.Errorf("sqlstore: unknown dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: build migration driver: %w", err)
	}

	src, err := iofs.New(sub, prefix)
	if err != nil {
		return fmt.Errorf("sqlstore: load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("sqlstore: init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: apply migrations: %w", err)
	}
	return nil
}
