// Package sqlitetest opens migrated SQLite databases for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/sqlite"
)

// New opens a database file in a temporary directory, migrates it and
// returns a Persistence over it. The database is closed when the test ends.
func New(t testing.TB) *persistence.Persistence {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "plane.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	p, err := persistence.NewPersistence(sqlite.NewSQLiteInteractor(db, logger, nil, nil), logger)
	require.NoError(t, err)
	_, err = p.Migrate(context.Background())
	require.NoError(t, err)
	return p
}
