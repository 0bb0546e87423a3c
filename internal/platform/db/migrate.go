package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.(up|down)\.sql$`)

// Migration is one versioned schema change with its rollback script.
type Migration struct {
	Version  int
	Name     string
	Up       string
	Down     string
	Checksum string
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// ErrNoMigrationApplied is returned by Down when the schema is empty.
var ErrNoMigrationApplied = errors.New("platform/db: no migration applied")

// LoadMigrations reads the embedded migration set sorted by version.
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("platform/db: read migrations: %w", err)
	}
	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("platform/db: migration %s: %w", entry.Name(), err)
		}
		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("platform/db: read %s: %w", entry.Name(), err)
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: matches[2]}
			byVersion[version] = m
		}
		if m.Name != matches[2] {
			return nil, fmt.Errorf("platform/db: migration %04d has conflicting names %q and %q", version, m.Name, matches[2])
		}
		switch matches[3] {
		case "up":
			m.Up = string(content)
			m.Checksum = fmt.Sprintf("%x", sha256.Sum256(content))
		case "down":
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("platform/db: migration %04d_%s missing up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrator applies the embedded migrations inside transactions.
type Migrator struct {
	db         Beginner
	migrations []Migration
}

// NewMigrator constructs a Migrator over the embedded migration set.
func NewMigrator(db Beginner) (*Migrator, error) {
	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db, migrations: migrations}, nil
}

const createSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Up applies every pending migration and returns the ones it ran.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	var ran []Migration
	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		err := WithTx(ctx, m.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, migration.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
				migration.Version, migration.Name, migration.Checksum)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("platform/db: apply %04d_%s: %w", migration.Version, migration.Name, err)
		}
		ran = append(ran, migration)
	}
	return ran, nil
}

// Down reverts the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) (Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return Migration{}, err
	}
	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if _, ok := applied[migration.Version]; !ok {
			continue
		}
		if migration.Down == "" {
			return Migration{}, fmt.Errorf("platform/db: migration %04d_%s has no down script", migration.Version, migration.Name)
		}
		err := WithTx(ctx, m.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, migration.Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, migration.Version)
			return err
		})
		if err != nil {
			return Migration{}, fmt.Errorf("platform/db: revert %04d_%s: %w", migration.Version, migration.Name, err)
		}
		return migration, nil
	}
	return Migration{}, ErrNoMigrationApplied
}

// Status lists every known migration with its applied timestamp.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := MigrationStatus{Migration: migration}
		if at, ok := applied[migration.Version]; ok {
			at := at
			status.AppliedAt = &at
		}
		out = append(out, status)
	}
	return out, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	out := make(map[int]time.Time)
	err := WithTx(ctx, m.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createSchemaMigrations); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var version int
			var appliedAt time.Time
			if err := rows.Scan(&version, &appliedAt); err != nil {
				return err
			}
			out[version] = appliedAt
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("platform/db: read schema_migrations: %w", err)
	}
	return out, nil
}
