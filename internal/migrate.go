package internal

import (
	"database/sql"
	"embed"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies the embedded ledger schema to db.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return err
	}
	logger.Info("Database migrations applied", "version", version)
	return nil
}
