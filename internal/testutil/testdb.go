package testutil

import (
	"database/sql"
	"testing"

	"github.com/alexanderramin/pipedeck/internal/db"
)

// NewTestDB opens an in-memory pipeline store with the schema applied.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(database)
}

// CountRows returns the number of rows in table. Only use with fixed table
// names.
func CountRows(t *testing.T, conn db.DBTX, table string) int {
	t.Helper()
	var n int
	if err := conn.QueryRowContext(t.Context(), `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}
