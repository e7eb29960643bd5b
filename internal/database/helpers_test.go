package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(Config{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "repcam_test.db")})
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, db.MigrateUp(), "failed to migrate test database")

	t.Cleanup(func() { db.Close() })
	return db
}
