package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/dropbox/internal/client/store"
	"github.com/dmitrijs2005/dropbox/internal/server/rest/resttest"
	"github.com/stretchr/testify/require"
)

func openState(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func unlockedVault(t *testing.T, db *sql.DB) *Vault {
	t.Helper()
	v := NewVault(db)
	require.NoError(t, v.Init(context.Background(), []byte("local-pw")))
	return v
}

func startRelay(t *testing.T) string {
	return resttest.NewServer(t, 0).URL
}
