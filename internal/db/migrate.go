package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	// ErrEmptyDSN is returned when no database URL is configured.
	ErrEmptyDSN = errors.New("db: database url is empty")
	// ErrDirty is returned when a previous migration failed halfway.
	ErrDirty = errors.New("db: schema is dirty")
)

// Migrate applies every pending up migration. An up-to-date schema is not an
// error.
func Migrate(dsn string, logger *slog.Logger) error {
	if strings.TrimSpace(dsn) == "" {
		return ErrEmptyDSN
	}
	if logger == nil {
		logger = slog.Default()
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("db: migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("db: init migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Error("migration source close failed", "error", srcErr)
		}
		if dbErr != nil {
			logger.Error("migration database close failed", "error", dbErr)
		}
	}()
	m.Log = migrateLogger{logger: logger}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("db: read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema up to date", "version", from)
			return nil
		}
		return fmt.Errorf("db: migrate up: %w", err)
	}

	to, _, _ := m.Version()
	logger.Info("schema migrated", "from_version", from, "to_version", to)
	return nil
}

// pgx5URL rewrites postgres:// URLs to the scheme the pgx/v5 migrate driver
// registers.
func pgx5URL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l migrateLogger) Verbose() bool { return false }
