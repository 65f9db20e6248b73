package sqlstore

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"dealscope/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// NewDB opens the report store: a PostgreSQL pool through pgx, or an embedded SQLite file.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlx.Connect("sqlite", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
		return db, nil
	case "postgres", "":
		db, err := sqlx.Connect("pgx", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpen)
		db.SetMaxIdleConns(cfg.MaxIdle)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// NewMigrator returns a migrate instance over the embedded schema migrations.
func NewMigrator(cfg *config.DBConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration.
func MigrateUp(cfg *config.DBConfig) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func migrationURL(cfg *config.DBConfig) string {
	if cfg.Driver == "sqlite" {
		return "sqlite://" + cfg.SQLitePath
	}
	return cfg.DSN()
}
