// Package migrate is the thin orchestration point named by the spec's
// RUN_MIGRATIONS_ON_STARTUP flag. The migration runner itself is an
// external collaborator the spec leaves unspecified; this package only
// wires golang-migrate to the embedded DDL and to a migration-history table
// isolated from the other services sharing the store.
package migrate

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"webhook-forwarder/internal/infra/db"
	"webhook-forwarder/internal/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Run applies pending migrations if cfg.RunMigrationsOnStartup is set. It
// is a no-op otherwise, leaving migration orchestration to whatever
// deployment tooling runs ahead of the service.
func Run(cfg config.Config) error {
	if !cfg.Ingest.RunMigrationsOnStartup {
		return nil
	}
	return RunWithConfig(cfg.DB, cfg.DB.MigrationsTable)
}

// RunWithConfig applies pending migrations unconditionally, bypassing the
// RunMigrationsOnStartup gate. Test setup uses this directly since a
// throwaway database always needs its schema regardless of that flag.
func RunWithConfig(dbCfg config.DBConfig, migrationsTable string) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	dsn, err := withMigrationsTable(db.ResolveDSN(dbCfg), migrationsTable)
	if err != nil {
		return fmt.Errorf("failed to build migration dsn: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// withMigrationsTable tags the DSN with x-migrations-table so this
// service's migration history never collides with another service's table
// in the same shared database.
func withMigrationsTable(dsn, table string) (string, error) {
	if table == "" {
		return dsn, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
