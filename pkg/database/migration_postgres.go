package database

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"tradeforge-core/pkg/log"
)

// PostgresMigrationHandler adapts the teacher's MySQL MigrationHandler
// step-logged shape to this repo's Postgres-backed relational schema (the
// new schema described in SPEC_FULL.md §6: users, strategies,
// backtest_jobs/results/batches, users_indicators, system_indicators,
// markets, tickers, user_backtest_quota). It is the only migration runner
// in this repository and applies up migrations only.
type PostgresMigrationHandler struct {
	db            *sqlx.DB
	migrationsDir string
}

// NewPostgresMigrationHandler builds a handler rooted at migrationsDir
// (conventionally internal/repository/postgres/migrations).
func NewPostgresMigrationHandler(db *sqlx.DB, migrationsDir string) *PostgresMigrationHandler {
	return &PostgresMigrationHandler{db: db, migrationsDir: migrationsDir}
}

// ApplyMigrations runs every pending up migration in order.
func (h *PostgresMigrationHandler) ApplyMigrations() error {
	log.Info("migration: applying pending postgres migrations from %s", h.migrationsDir)

	driver, err := postgres.WithInstance(h.db.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create postgres migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", h.migrationsDir), "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migration instance")
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		log.Warn("migration: could not read current version: %v", err)
	} else {
		log.Info("migration: current version=%d dirty=%t", version, dirty)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info("migration: database already up to date")
			return nil
		}
		return errors.Wrap(err, "failed to apply migrations")
	}

	newVersion, newDirty, err := m.Version()
	if err == nil {
		log.Info("migration: applied migrations, now at version=%d dirty=%t", newVersion, newDirty)
	}
	return nil
}
