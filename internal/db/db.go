// Package db opens the store and keeps its schema current.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/nexusbilling/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Open connects to the configured database. PostgreSQL connections are
// retried to leave the server time to start.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if !cfg.IsPostgres() {
		log.Info("opening sqlite database", zap.String("path", cfg.Path))
		return OpenSQLite(cfg.Path, cfg.Debug)
	}

	dsn := PostgresDSN(cfg)
	log.Info("connecting to postgres", zap.String("dsn", MaskDSN(dsn)))
	var (
		conn *gorm.DB
		err  error
	)
	for i := 1; i <= connectAttempts; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), gormConfig(cfg.Debug))
		if err == nil {
			break
		}
		log.Warn("database connection failed, retrying", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", connectAttempts, err)
	}
	if err := Ping(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// OpenSQLite opens a sqlite database (a file path or a "file:" URI).
// Access goes through a single connection, one operation at a time.
func OpenSQLite(dsn string, debug bool) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(debug))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

// Ping runs a trivial query against the store.
func Ping(conn *gorm.DB) error {
	if err := conn.Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// MemoryDSN names a shared in-memory sqlite database. Connections using the
// same name see the same data until the last one closes.
func MemoryDSN(name string) string {
	name = strings.NewReplacer("/", "_", "#", "_", " ", "_").Replace(name)
	return "file:" + name + "?mode=memory&cache=shared"
}

func gormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}
