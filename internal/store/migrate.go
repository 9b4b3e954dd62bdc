package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version string
	sql     string
}

// loadMigrations returns the embedded migrations in version order.
// Lexicographic filename order is version order.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: entry.Name(), sql: string(body)})
	}
	return out, nil
}

// RunMigrations applies pending SQL migrations in order on PostgreSQL.
// Migrations are tracked in a schema_migrations table.
// There are no down migrations; fix forward only.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, queryCreateSchemaMigrations); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		if err := pool.QueryRow(ctx, queryMigrationApplied, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %s: %w", m.version, err)
		}
		if exists {
			continue
		}

		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.version, err)
		}

		if _, err := pool.Exec(ctx, queryRecordMigration, m.version); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.version, err)
		}
	}

	return nil
}

// runSQLiteMigrations is RunMigrations for database/sql.
func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, queryCreateSchemaMigrations); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		if err := db.QueryRowContext(ctx, querySQLiteMigrationApplied, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %s: %w", m.version, err)
		}
		if exists {
			continue
		}

		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.version, err)
		}

		if _, err := db.ExecContext(ctx, querySQLiteRecordMigration, m.version); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.version, err)
		}
	}

	return nil
}
