// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package migration applies the users schema under data/migrations with
golang-migrate.

`api serve` runs [RunUp] before accepting traffic. `api migrate` gives
operators up, down, version and force for recovering a dirty schema.
*/
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Runner applies the SQL migrations under a directory to one database.
type Runner struct {
	databaseURL string
	sourceURL   string
	logger      *slog.Logger
}

// NewRunner creates a Runner for dsn and the migrations directory at path.
func NewRunner(dsn, path string, logger *slog.Logger) *Runner {
	return &Runner{
		databaseURL: Pgx5DSN(dsn),
		sourceURL:   "file://" + path,
		logger:      logger,
	}
}

// RunUp applies all pending UP migrations.
func RunUp(dsn, path string, logger *slog.Logger) error {
	return NewRunner(dsn, path, logger).Up()
}

// Up applies all pending migrations.
func (runner *Runner) Up() error {
	return runner.with(func(migrator *migrate.Migrate, from uint) error {
		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				runner.logger.Info("migration_already_up_to_date", slog.Int("version", int(from)))
				return nil
			}
			return fmt.Errorf("migration: up failed: %w", err)
		}
		return nil
	})
}

// Down rolls back the given number of migrations.
func (runner *Runner) Down(steps int) error {
	if steps < 1 {
		return fmt.Errorf("migration: steps must be positive, got %d", steps)
	}

	return runner.with(func(migrator *migrate.Migrate, _ uint) error {
		if err := migrator.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration: down failed: %w", err)
		}
		return nil
	})
}

/*
Force records version as applied and clears the dirty flag without running
any SQL. Use it after fixing a half-applied migration by hand.
*/
func (runner *Runner) Force(version int) error {
	if version < 0 {
		return fmt.Errorf("migration: version must not be negative, got %d", version)
	}

	migrator, err := migrate.New(runner.sourceURL, runner.databaseURL)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer runner.close(migrator)

	if err := migrator.Force(version); err != nil {
		return fmt.Errorf("migration: force %d failed: %w", version, err)
	}

	runner.logger.Warn("migration_version_forced", slog.Int("version", version))
	return nil
}

// Version reports the current schema version and whether it is dirty.
func (runner *Runner) Version() (uint, bool, error) {
	migrator, err := migrate.New(runner.sourceURL, runner.databaseURL)
	if err != nil {
		return 0, false, fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer runner.close(migrator)

	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration: failed to get current version: %w", err)
	}

	return version, dirty, nil
}

// with opens a migrator, refuses dirty databases, runs fn and logs the outcome.
func (runner *Runner) with(fn func(migrator *migrate.Migrate, from uint) error) error {
	migrator, err := migrate.New(runner.sourceURL, runner.databaseURL)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer runner.close(migrator)

	migrator.Log = &migrateLogger{logger: runner.logger}

	currentVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}

	if isDirty {
		return fmt.Errorf("migration: schema is dirty at version %d; repair it and run `api migrate force %d`", currentVersion, currentVersion)
	}

	runner.logger.Info("migration_started", slog.Int("current_version", int(currentVersion)))

	if err := fn(migrator, currentVersion); err != nil {
		return err
	}

	newVersion, _, _ := migrator.Version()
	runner.logger.Info("migration_successful",
		slog.Int("from_version", int(currentVersion)),
		slog.Int("to_version", int(newVersion)),
	)

	return nil
}

func (runner *Runner) close(migrator *migrate.Migrate) {
	sourceError, dbError := migrator.Close()
	if sourceError != nil {
		runner.logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
	}
	if dbError != nil {
		runner.logger.Error("migration_db_close_failed", slog.Any("error", dbError))
	}
}

// Pgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5:// scheme golang-migrate expects.
func Pgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger sends golang-migrate's progress lines to slog at DEBUG.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (l *migrateLogger) Verbose() bool { return false }
