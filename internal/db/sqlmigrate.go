package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/nexusbilling/internal/config"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunSQLMigrations applies the embedded SQL migrations. Only PostgreSQL
// stores are versioned this way; sqlite relies on Evolve alone.
func RunSQLMigrations(cfg config.DatabaseConfig, log *zap.Logger) error {
	if !cfg.IsPostgres() {
		log.Info("sql migrations skipped", zap.String("driver", cfg.Driver))
		return nil
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, ToURLDSN(PostgresDSN(cfg)))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	version, dirty, _ := m.Version()
	log.Info("sql migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
