package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const (
	sqliteDialect = "sqlite3"
	migrationsDir = "sql"
)

// ErrNotCurrent means the database is behind the migrations embedded in the binary.
var ErrNotCurrent = errors.New("database schema is not current")

//go:embed sql/*.sql
var files embed.FS

type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSpace(format), v...)
}

func setup() error {
	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{zap.S().Named("migrations")})
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Up runs all pending migrations embedded in the binary.
func Up(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

// Version reports the schema version currently applied.
func Version(db *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read goose version: %w", err)
	}
	return v, nil
}

// Latest reports the newest migration version embedded in the binary.
func Latest() (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	ms, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return 0, fmt.Errorf("collect goose migrations: %w", err)
	}
	last, err := ms.Last()
	if err != nil {
		return 0, fmt.Errorf("find latest goose migration: %w", err)
	}
	return last.Version, nil
}

// CheckCurrent returns an error wrapping ErrNotCurrent unless every embedded migration
// has been applied.
func CheckCurrent(db *sql.DB) error {
	v, err := Version(db)
	if err != nil {
		return err
	}
	latest, err := Latest()
	if err != nil {
		return err
	}
	if v < latest {
		return fmt.Errorf("%w: at version %d, want %d; run `renoctl migrate`", ErrNotCurrent, v, latest)
	}
	return nil
}
