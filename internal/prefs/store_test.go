package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_create_user_languages.up.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	lang, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, lang)

	require.NoError(t, s.Set(ctx, 42, "ru"))
	require.NoError(t, s.Set(ctx, 7, "uz"))
	require.NoError(t, s.Set(ctx, 42, "kk"))

	lang, err = s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "kk", lang)

	lang, err = s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "uz", lang)
}

func TestSQLStore(t *testing.T) {
	exercise(t, NewSQLStore(openSQLite(t)))
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestSQLStoreClosedDB(t *testing.T) {
	db := openSQLite(t)
	s := NewSQLStore(db)
	require.NoError(t, db.Close())
	_, err := s.Get(context.Background(), 1)
	assert.Error(t, err)
	assert.Error(t, s.Set(context.Background(), 1, "en"))
}
