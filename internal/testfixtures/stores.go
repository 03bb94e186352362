package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/taskplanner/internal/persistence/jsonfile"
	"github.com/example/taskplanner/internal/persistence/sqlstore"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewJSONStore opens a flat-file store in a temporary directory.
func NewJSONStore(tb testing.TB, clock *Clock) *jsonfile.Store {
	tb.Helper()

	store, err := jsonfile.Open(tb.TempDir(),
		jsonfile.WithClock(clock.NowFunc()),
		jsonfile.WithLogger(DiscardLogger()),
	)
	if err != nil {
		tb.Fatalf("failed to open json store: %v", err)
	}
	return store
}

// NewSQLiteStore opens and migrates a SQLite store in a temporary file. The
// store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB, clock *Clock) *sqlstore.Store {
	tb.Helper()

	dsn := "file:" + filepath.Join(tb.TempDir(), "taskplanner.db")
	store, err := sqlstore.Open(context.Background(), sqlstore.DialectSQLite, dsn,
		sqlstore.WithClock(clock.NowFunc()),
		sqlstore.WithLogger(DiscardLogger()),
	)
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate sqlite store: %v", err)
	}
	return store
}
