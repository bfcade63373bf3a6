package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one SQL migration file, parsed from an NNN_name.sql filename.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies versioned SQL files from a directory and records each run
// in the schema_migrations table.
type Migrator struct {
	pool *pgxpool.Pool
	dir  string
}

func NewMigrator(pool *pgxpool.Pool, dir string) *Migrator {
	return &Migrator{pool: pool, dir: dir}
}

// LoadMigrations reads every versioned .sql file in the directory and returns
// them sorted by version. Files without a numeric NNN_ prefix are skipped.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", m.dir, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, ok := parseVersion(entry.Name())
		if !ok {
			continue
		}
		sql, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    entry.Name(),
			SQL:     string(sql),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseVersion extracts the numeric prefix from names like 002_cases.sql.
func parseVersion(name string) (int, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Up applies all pending migrations in version order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.UpTo(ctx, 0)
}

// UpTo applies pending migrations up to and including targetVersion; zero
// means no upper bound. Each migration runs in its own transaction, so a
// failure leaves the earlier ones committed.
func (m *Migrator) UpTo(ctx context.Context, targetVersion int) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}
	applied, err := m.appliedAt(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if targetVersion > 0 && mig.Version > targetVersion {
			break
		}
		if _, done := applied[mig.Version]; done {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return count, fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Status lists every known migration with its applied timestamp, if any.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	applied, err := m.appliedAt(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	return nil
}

// appliedAt returns the applied versions keyed to when each one ran.
func (m *Migrator) appliedAt(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.pool.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan schema_migrations row: %w", err)
		}
		applied[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return WithTx(ctx, m.pool, func(ctx context.Context) error {
		tx := TxFromContext(ctx)
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			mig.Version, mig.Name,
		); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		return nil
	})
}
