package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migration is one embedded schema step.
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrations returns the embedded migrations in version order with the
// table prefix substituted.
func LoadMigrations(tables *TableNames) ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql"),
			SQL:     strings.ReplaceAll(string(data), "${prefix}", tables.Prefix),
		})
	}
	return migrations, nil
}

// Migrate applies pending migrations, each in its own transaction, and
// returns the versions it applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) ([]string, error) {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, tables.SchemaMigrations))
	if err != nil {
		return nil, fmt.Errorf("ensure %s: %w", tables.SchemaMigrations, err)
	}

	migrations, err := LoadMigrations(tables)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range migrations {
		var exists bool
		err := pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE version = $1)`, tables.SchemaMigrations),
			m.Version,
		).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("execute: %w", err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (version) VALUES ($1)`, tables.SchemaMigrations),
				m.Version,
			)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.Version, err)
		}

		logger.Info("migration applied", "version", m.Version)
		applied = append(applied, m.Version)
	}

	return applied, nil
}

// DropAll removes every table this package manages. Used by the CLI reset.
func DropAll(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
		DROP FUNCTION IF EXISTS %snotify_documents_changed() CASCADE;
	`, tables.Documents, tables.UserPreferences, tables.SchemaMigrations, tables.Prefix))
	if err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
