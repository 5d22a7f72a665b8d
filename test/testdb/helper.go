package testdb

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/selivandex/news-digest/internal/adapters/database"
)

// TestDB is a migrated Postgres database that is emptied after each test
type TestDB struct {
	DB *sqlx.DB
}

// Setup connects to TEST_DATABASE_URL and applies migrations. The test is
// skipped when the variable is unset.
func Setup(t *testing.T) *TestDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres test")
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.RunMigrations(conn.DB, migrationsPath(t)); err != nil {
		conn.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	tdb := &TestDB{DB: conn}
	tdb.truncate(t)

	t.Cleanup(func() {
		tdb.truncate(t)
		if err := conn.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	})

	return tdb
}

func (tdb *TestDB) truncate(t *testing.T) {
	t.Helper()

	if _, err := tdb.DB.Exec(`TRUNCATE reading_history, user_preferences, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Exec executes SQL and fails the test on error
func (tdb *TestDB) Exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()

	if _, err := tdb.DB.Exec(query, args...); err != nil {
		t.Fatalf("failed to execute query: %v\nQuery: %s", err, query)
	}
}

// CreateTestUser inserts a user and returns its id
func (tdb *TestDB) CreateTestUser(t *testing.T, email string) int64 {
	t.Helper()

	var id int64
	if err := tdb.DB.QueryRow(`INSERT INTO users (email, full_name) VALUES ($1, 'Test User') RETURNING id`, email).Scan(&id); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return id
}

// CountRows returns the number of rows in a table matching the where clause
func (tdb *TestDB) CountRows(t *testing.T, table, where string, args ...interface{}) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := tdb.DB.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

// migrationsPath locates migrations/ relative to this file
func migrationsPath(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to locate testdb package")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
