package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/nexusbilling/internal/config"
	"github.com/diewo77/nexusbilling/internal/db"
	"github.com/diewo77/nexusbilling/internal/logger"
	"github.com/diewo77/nexusbilling/internal/metrics"
	"github.com/diewo77/nexusbilling/internal/server"
	"github.com/diewo77/nexusbilling/internal/view"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// boot loads configuration and opens the database.
func boot() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.Load()
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, conn, nil
}

// prepare applies the optional SQL migrations, the schema evolution
// policy and, when enabled, the starter seed.
func prepare(cfg *config.Config, log *zap.Logger, conn *gorm.DB, seed bool) error {
	if cfg.App.Migrations {
		if err := db.RunSQLMigrations(cfg.Database, log); err != nil {
			return err
		}
	}
	rep, err := db.Evolve(conn, log)
	if err != nil {
		return fmt.Errorf("schema evolution: %w", err)
	}
	if len(rep.Failed) > 0 {
		log.Warn("schema evolution incomplete", zap.Strings("columns", rep.Failed))
	}
	if seed {
		if _, err := db.Seed(conn, log); err != nil {
			return err
		}
	}
	return nil
}

// newApp builds the HTTP handler for a prepared database.
func newApp(cfg *config.Config, log *zap.Logger, conn *gorm.DB) (http.Handler, error) {
	company, err := config.LoadCompany(cfg.App.CompanyFile)
	if err != nil {
		return nil, err
	}
	v, err := view.New(company)
	if err != nil {
		return nil, err
	}
	return server.New(server.Deps{
		DB:       conn,
		View:     v,
		Metrics:  metrics.New(),
		Log:      log,
		PageSize: cfg.App.PageSize,
	}), nil
}

func closeDB(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func runMigrate(_ context.Context) error {
	cfg, log, conn, err := boot()
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if err := prepare(cfg, log, conn, false); err != nil {
		return err
	}
	log.Info("migrations completed")
	return nil
}

func runSeed(_ context.Context) error {
	_, log, conn, err := boot()
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if _, err := db.Evolve(conn, log); err != nil {
		return err
	}
	n, err := db.Seed(conn, log)
	if err != nil {
		return err
	}
	log.Info("seed completed", zap.Int("inserted", n))
	return nil
}

func runServe(ctx context.Context) error {
	cfg, log, conn, err := boot()
	if err != nil {
		return err
	}
	defer closeDB(conn)
	defer func() { _ = log.Sync() }()

	if err := prepare(cfg, log, conn, cfg.App.Seed); err != nil {
		return err
	}
	handler, err := newApp(cfg, log, conn)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  config.Timeout(cfg.Server.ReadTimeout),
		WriteTimeout: config.Timeout(cfg.Server.WriteTimeout),
		IdleTimeout:  config.Timeout(cfg.Server.IdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server gracefully stopped")
	return nil
}
