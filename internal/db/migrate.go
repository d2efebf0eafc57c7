package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending up migration embedded in the binary.
func Migrate(url string, logger *logrus.Logger) error {
	m, closeFn, err := newMigrator(url)
	if err != nil {
		return err
	}
	defer closeFn()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, err := checkVersion(m)
	if err != nil {
		return err
	}
	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.WithField("version", version).Info("no new migrations to apply")
	} else {
		logger.WithField("version", version).Info("database migrations applied")
	}
	return nil
}

// Reset rolls every migration back and reapplies them, leaving an empty ledger
// with the reference data seeded. All postings are lost.
func Reset(url string, logger *logrus.Logger) error {
	m, closeFn, err := newMigrator(url)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	logger.Info("database migrations rolled back")

	if err := m.Up(); err != nil {
		return fmt.Errorf("failed to reapply migrations: %w", err)
	}
	version, err := checkVersion(m)
	if err != nil {
		return err
	}
	logger.WithField("version", version).Info("database reset to seed state")
	return nil
}

// newMigrator opens its own database/sql connection through the pgx stdlib driver
// because golang-migrate's postgres driver works on *sql.DB.
func newMigrator(url string) (*migrate.Migrate, func(), error) {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	fail := func(err error) (*migrate.Migrate, func(), error) {
		_ = sqlDB.Close()
		return nil, nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return fail(fmt.Errorf("failed to ping database for migrations: %w", err))
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fail(fmt.Errorf("failed to create migrate driver: %w", err))
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fail(fmt.Errorf("failed to open embedded migrations: %w", err))
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fail(fmt.Errorf("failed to create migrate instance: %w", err))
	}
	return m, func() { _, _ = m.Close() }, nil
}

func checkVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database schema is dirty at version %d", version)
	}
	return version, nil
}

// MigrationNames lists the embedded migration files in apply order.
func MigrationNames() ([]string, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
