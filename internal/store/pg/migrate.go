package pg

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending migration in migrations/ against the
// primary DSN, the way the teacher's onboarding/ledger components run
// golang-migrate on startup before serving traffic.
func Migrate(primaryDSN string) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("pg: load migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, primaryDSN)
	if err != nil {
		return fmt.Errorf("pg: open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pg: apply migrations: %w", err)
	}

	return nil
}
