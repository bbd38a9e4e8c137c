package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"agency/pkg/config"
	"agency/pkg/logger"
)

// MigrateConfig applies every pending up migration found at migrationsPath
// (e.g. file://migrations). An already current schema is not an error.
func MigrateConfig(migrationsPath string, cfg config.Config) error {
	m, err := migrate.New(migrationsPath, migrationConnString(cfg))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug(context.Background(), "schema up to date", "path", migrationsPath)
			return nil
		}
		return err
	}

	if v, dirty, err := m.Version(); err == nil {
		logger.Info(context.Background(), "migrations applied", "version", v, "dirty", dirty)
	}
	return nil
}
