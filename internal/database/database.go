// Package database opens the libsql connection and applies schema
// migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/graceverse/study-api/internal/database/migrations"
)

// New opens the database named by dsn. A plain file: DSN runs fully local;
// setting TURSO_URL and TURSO_AUTH_TOKEN switches to an embedded replica
// synced against Turso cloud, with read-your-writes so a request sees its
// own inserts.
func New(dsn string) (*sql.DB, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}

	// PRAGMAs may or may not return a row depending on the statement, so
	// try a scan first and fall back to Exec.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
	} {
		var discard string
		if err := db.QueryRow(pragma).Scan(&discard); err != nil {
			if _, err := db.Exec(pragma); err != nil {
				return nil, fmt.Errorf("apply %q: %w", pragma, err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func open(dsn string) (*sql.DB, error) {
	tursoURL := os.Getenv("TURSO_URL")
	tursoToken := os.Getenv("TURSO_AUTH_TOKEN")

	if tursoURL != "" && tursoToken != "" {
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		connector, err := libsql.NewEmbeddedReplicaConnector(path, tursoURL,
			libsql.WithAuthToken(tursoToken),
			libsql.WithReadYourWrites(true),
		)
		if err != nil {
			return nil, fmt.Errorf("create embedded replica: %w", err)
		}
		db := sql.OpenDB(connector)
		// Writes are serialized upstream; the pool only needs to cover
		// concurrent reads.
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		return db, nil
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conns := runtime.NumCPU()
	if conns < 4 {
		conns = 4
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns / 2)
	return db, nil
}

// Migrate applies all pending schema migrations.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// SchemaVersion reports the newest applied migration and the total count.
func SchemaVersion(db *sql.DB) (version string, count int, err error) {
	version, err = migrations.LatestVersion(db)
	if err != nil {
		return "", 0, err
	}
	count, err = migrations.Count(db)
	return version, count, err
}
