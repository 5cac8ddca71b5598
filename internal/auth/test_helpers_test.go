package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-alexa/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB opens a temporary SQLite database with all migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// fixedClock returns a clock that reads *now, so tests can move time.
func fixedClock(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

var testRedirect = "https://layla.amazon.com/api/skill/link/M2ABC"

func testService(t *testing.T, now *time.Time) *Service {
	t.Helper()
	svc := NewService(Config{
		ClientID:         "skill-client",
		ClientSecret:     "skill-secret",
		Scope:            "iobroker",
		RedirectPrefixes: []string{"https://layla.amazon.com/api/skill/link/"},
		CodeTTL:          5 * time.Minute,
	}, NewSigner(testSecret, time.Hour, 365*24*time.Hour), NewCodeRepository(testDB(t)))
	svc.SetClock(fixedClock(now))
	return svc
}
