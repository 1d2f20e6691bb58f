// Package migrations holds the schema migrations for the study-guide
// database. Each migration lives in its own file named
// YYYYMMDD-HHmmss-description.go and adds itself to the registry from
// init(), so importing the package is enough to make it runnable.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Migration is one schema change, ordered and tracked by its timestamp.
type Migration struct {
	Timestamp   string // YYYYMMDD-HHmmss
	Description string
	Up          []string // statements applied in order, inside one transaction
}

var registry []Migration

// Register adds a migration to the registry; called from each migration
// file's init().
func Register(m Migration) {
	registry = append(registry, m)
}

// Run applies every registered migration that has not been recorded in
// schema_migrations yet, oldest first, each inside its own transaction.
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(registry))
	for _, m := range registry {
		if !applied[m.Timestamp] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Timestamp < pending[j].Timestamp })

	for _, m := range pending {
		logger.Info("applying migration", "version", m.Timestamp, "description", m.Description)
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.Timestamp, err)
		}
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Timestamp, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// LatestVersion returns the newest applied migration timestamp, or "" when
// the database is fresh.
func LatestVersion(db *sql.DB) (string, error) {
	var v sql.NullString
	err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// Count returns how many migrations have been applied.
func Count(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n)
	return n, err
}
