package service

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/database/migrations"
	"github.com/graceverse/study-api/internal/lock"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
	_ "github.com/tursodatabase/go-libsql"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Every pooled connection to :memory: is a separate database, so keep
	// the pool at one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Costs:           map[models.Language]int{models.LangEnglish: 10, models.LangHindi: 20, models.LangMalayalam: 20},
		PlanLimits:      map[models.Plan]int{models.PlanFree: 8, models.PlanStandard: 20, models.PlanPlus: 50, models.PlanPremium: 1_000_000_000},
		MinEaseFactor:   1.3,
		MaxIntervalDays: 180,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func setupTestServices(t *testing.T, llm Generator) (*Services, *repository.Repositories) {
	t.Helper()
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := testConfig()
	logger := testLogger()
	svcs := New(repos, llm, lock.NewLocal(), cfg, logger)
	return svcs, repos
}
