package sqlstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskplanner/internal/persistence"
	"github.com/example/taskplanner/internal/persistence/sqlstore"
	"github.com/example/taskplanner/internal/persistence/storetest"
)

func openSQLite(t *testing.T, now func() time.Time) *sqlstore.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "taskplanner.db")
	store, err := sqlstore.Open(context.Background(), sqlstore.DialectSQLite, dsn, sqlstore.WithClock(now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStoreContract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T, now func() time.Time) persistence.Store {
		return openSQLite(t, now)
	})
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("TASKPLANNER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TASKPLANNER_TEST_POSTGRES_DSN not set")
	}

	store, err := sqlstore.Open(context.Background(), sqlstore.DialectPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	ctx := context.Background()
	rec, err := store.Create(ctx, "pg_smoke", persistence.Record{"title": "hello"})
	require.NoError(t, err)
	id, _ := rec.ID()

	fetched, err := store.GetByID(ctx, "pg_smoke", id)
	require.NoError(t, err)
	assert.Equal(t, rec, fetched)

	removed, err := store.Delete(ctx, "pg_smoke", id)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openSQLite(t, time.Now)
	require.NoError(t, store.Migrate(context.Background()))

	versions, err := store.AppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001", "002"}, versions)
}

func TestStore_SkipsCorruptRows(t *testing.T) {
	t.Parallel()

	dsn := "file:" + filepath.Join(t.TempDir(), "corrupt.db")
	pool, err := sqlstore.OpenPool(context.Background(), sqlstore.DialectSQLite, dsn)
	require.NoError(t, err)
	store := sqlstore.New(pool)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	ctx := context.Background()
	good, err := store.Create(ctx, "tasks", persistence.Record{"title": "kept"})
	require.NoError(t, err)

	_, err = pool.DB().ExecContext(ctx,
		`INSERT INTO records (entity, id, data, created_at, updated_at) VALUES ('tasks', 2, '{not json', '', '')`)
	require.NoError(t, err)

	records, err := store.GetAll(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, []persistence.Record{good}, records)

	_, err = store.GetByID(ctx, "tasks", 2)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	next, err := store.Create(ctx, "tasks", persistence.Record{"title": "after corrupt row"})
	require.NoError(t, err)
	id, _ := next.ID()
	assert.Equal(t, int64(3), id)
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	tests := map[string]sqlstore.Dialect{
		"sqlite":     sqlstore.DialectSQLite,
		"SQLite3":    sqlstore.DialectSQLite,
		"postgres":   sqlstore.DialectPostgres,
		"postgresql": sqlstore.DialectPostgres,
	}
	for input, want := range tests {
		got, err := sqlstore.ParseDialect(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := sqlstore.ParseDialect("mysql")
	assert.Error(t, err)
}
