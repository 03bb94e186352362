// Package storetest holds the behavioural suite every persistence.Store
// implementation must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskplanner/internal/persistence"
)

// Factory opens a fresh, empty store whose timestamps come from now.
type Factory func(t *testing.T, now func() time.Time) persistence.Store

type steppingClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func newClock() *steppingClock {
	return &steppingClock{cur: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

// Run exercises the store contract against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("empty collection reads as empty", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)

		records, err := store.GetAll(context.Background(), "tasks")
		require.NoError(t, err)
		assert.Empty(t, records)

		_, err = store.GetByID(context.Background(), "tasks", 1)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("assigns strictly increasing ids", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		var last int64
		for i := 0; i < 5; i++ {
			rec, err := store.Create(ctx, "calendar", persistence.Record{"title": fmt.Sprintf("event %d", i)})
			require.NoError(t, err)
			id, ok := rec.ID()
			require.True(t, ok)
			assert.Greater(t, id, last)
			last = id
		}
		assert.Equal(t, int64(5), last)
	})

	t.Run("create stamps timestamps and round-trips", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		created, err := store.Create(ctx, "tasks", persistence.Record{
			"title":                    "Clean garage",
			"time_to_complete_minutes": 30,
			"id":                       99,
			"created_at":               "ignored",
		})
		require.NoError(t, err)

		id, _ := created.ID()
		assert.Equal(t, int64(1), id)
		assert.Equal(t, created[persistence.FieldCreatedAt], created[persistence.FieldUpdatedAt])
		assert.NotEqual(t, "ignored", created[persistence.FieldCreatedAt])

		fetched, err := store.GetByID(ctx, "tasks", id)
		require.NoError(t, err)
		assert.Equal(t, created, fetched)
		assert.Equal(t, json.Number("30"), fetched["time_to_complete_minutes"])
	})

	t.Run("update merges only supplied fields", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		created, err := store.Create(ctx, "reminders", persistence.Record{"title": "Call plumber", "is_active": true})
		require.NoError(t, err)
		id, _ := created.ID()

		updated, err := store.Update(ctx, "reminders", id, persistence.Record{
			"title":      "Call electrician",
			"id":         int64(42),
			"created_at": "2000-01-01T00:00:00Z",
		})
		require.NoError(t, err)

		expected := created.Clone()
		expected["title"] = "Call electrician"
		expected[persistence.FieldUpdatedAt] = updated[persistence.FieldUpdatedAt]
		assert.Equal(t, expected, updated)
		assert.NotEqual(t, created[persistence.FieldUpdatedAt], updated[persistence.FieldUpdatedAt])

		createdAt, err := time.Parse(time.RFC3339Nano, updated.String(persistence.FieldCreatedAt))
		require.NoError(t, err)
		updatedAt, err := time.Parse(time.RFC3339Nano, updated.String(persistence.FieldUpdatedAt))
		require.NoError(t, err)
		assert.True(t, createdAt.Before(updatedAt))

		fetched, err := store.GetByID(ctx, "reminders", id)
		require.NoError(t, err)
		assert.Equal(t, updated, fetched)
	})

	t.Run("update of a missing record reports not found", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)

		_, err := store.Update(context.Background(), "reminders", 7, persistence.Record{"title": "x"})
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("delete is permanent and idempotent", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		first, err := store.Create(ctx, "documents", persistence.Record{"title": "Lease"})
		require.NoError(t, err)
		second, err := store.Create(ctx, "documents", persistence.Record{"title": "Insurance"})
		require.NoError(t, err)
		id, _ := first.ID()

		removed, err := store.Delete(ctx, "documents", id)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = store.GetByID(ctx, "documents", id)
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		removed, err = store.Delete(ctx, "documents", id)
		require.NoError(t, err)
		assert.False(t, removed)

		remaining, err := store.GetAll(ctx, "documents")
		require.NoError(t, err)
		assert.Equal(t, []persistence.Record{second}, remaining)
	})

	t.Run("ids are not reused after deleting the highest id", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		_, err := store.Create(ctx, "knowledge", persistence.Record{"title": "a"})
		require.NoError(t, err)
		top, err := store.Create(ctx, "knowledge", persistence.Record{"title": "b"})
		require.NoError(t, err)
		topID, _ := top.ID()

		removed, err := store.Delete(ctx, "knowledge", topID)
		require.NoError(t, err)
		require.True(t, removed)

		next, err := store.Create(ctx, "knowledge", persistence.Record{"title": "c"})
		require.NoError(t, err)
		nextID, _ := next.ID()
		assert.Equal(t, topID+1, nextID)
	})

	t.Run("collections are independent", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		_, err := store.Create(ctx, "tasks", persistence.Record{"title": "task"})
		require.NoError(t, err)
		event, err := store.Create(ctx, "calendar", persistence.Record{"title": "event"})
		require.NoError(t, err)

		id, _ := event.ID()
		assert.Equal(t, int64(1), id)
	})

	t.Run("preserves append order", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		for _, title := range []string{"one", "two", "three"} {
			_, err := store.Create(ctx, "team", persistence.Record{"name": title})
			require.NoError(t, err)
		}
		_, err := store.Update(ctx, "team", 1, persistence.Record{"name": "uno"})
		require.NoError(t, err)

		records, err := store.GetAll(ctx, "team")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"uno", "two", "three"}, []string{records[0].String("name"), records[1].String("name"), records[2].String("name")})
	})

	t.Run("concurrent creates never lose updates", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)
		ctx := context.Background()

		const writers = 24
		ids := make(chan int64, writers)
		errs := make(chan error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec, err := store.Create(ctx, "login_attempts", persistence.Record{"submitted_code": fmt.Sprintf("c%02d", i)})
				if err != nil {
					errs <- err
					return
				}
				id, _ := rec.ID()
				ids <- id
			}(i)
		}
		wg.Wait()
		close(ids)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		seen := make(map[int64]bool, writers)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		assert.Len(t, seen, writers)

		records, err := store.GetAll(ctx, "login_attempts")
		require.NoError(t, err)
		assert.Len(t, records, writers)
	})

	t.Run("rejects unsafe entity names", func(t *testing.T) {
		t.Parallel()
		store := factory(t, newClock().now)

		_, err := store.GetAll(context.Background(), "../etc/passwd")
		assert.True(t, errors.Is(err, persistence.ErrInvalidEntity))

		_, err = store.Create(context.Background(), "Tasks", persistence.Record{})
		assert.ErrorIs(t, err, persistence.ErrInvalidEntity)
	})
}
