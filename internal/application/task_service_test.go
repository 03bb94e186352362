package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskplanner/internal/persistence"
)

type taskHarness struct {
	records *RecordService
	store   persistence.Store
	clock   *testClock
}

func newTaskHarness(t *testing.T) taskHarness {
	t.Helper()
	clock := newTestClock()
	store := newTestStore(t, clock)
	return taskHarness{
		records: NewRecordService(store, clock.Now, discardLogger()),
		store:   store,
		clock:   clock,
	}
}

func (h taskHarness) seedTask(t *testing.T, payload map[string]any) persistence.Record {
	t.Helper()
	if _, ok := payload["time_to_complete_minutes"]; !ok {
		payload["time_to_complete_minutes"] = float64(15)
	}
	rec, err := h.records.Create(context.Background(), member, EntityTasks, payload)
	require.NoError(t, err)
	return rec
}

func titles(records []persistence.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.String("title"))
	}
	return out
}

func TestTaskService_ListFromStore(t *testing.T) {
	t.Parallel()

	h := newTaskHarness(t)
	ctx := context.Background()
	h.seedTask(t, map[string]any{"title": "dishes", "assignee": "SAM (9127SAM)"})
	archived := h.seedTask(t, map[string]any{"title": "old", "assignee": "SAM (9127SAM)"})
	h.seedTask(t, map[string]any{"title": "laundry", "assignee": "TBB (7226TBB)"})

	svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), nil, 0, discardLogger())
	id, _ := archived.ID()
	_, err := svc.Archive(ctx, member, id)
	require.NoError(t, err)

	visible, err := svc.List(ctx, member, TaskListParams{Limit: NoLimit})
	require.NoError(t, err)
	assert.Equal(t, []string{"dishes", "laundry"}, titles(visible))

	all, err := svc.List(ctx, member, TaskListParams{Limit: NoLimit, IncludeArchived: true, Assignee: "SAM (9127SAM)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dishes", "old"}, titles(all))

	_, err = svc.Unarchive(ctx, member, id)
	require.NoError(t, err)
	visible, err = svc.List(ctx, member, TaskListParams{Limit: NoLimit})
	require.NoError(t, err)
	assert.Len(t, visible, 3)

	_, err = svc.List(ctx, Principal{}, TaskListParams{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTaskService_ListPrefersExternalSource(t *testing.T) {
	t.Parallel()

	h := newTaskHarness(t)
	h.seedTask(t, map[string]any{"title": "local"})
	external := &taskSourceStub{tasks: []persistence.Record{
		{"external_id": "T-1", "title": "from sheet", "assignee": "SAM (9127SAM)", "is_archived": false},
		{"external_id": "T-2", "title": "other", "assignee": "TBB (7226TBB)", "is_archived": false},
	}}
	svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), external, time.Second, discardLogger())

	tasks, err := svc.List(context.Background(), member, TaskListParams{Limit: NoLimit, Assignee: "SAM (9127SAM)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"from sheet"}, titles(tasks))

	local, err := svc.List(context.Background(), member, TaskListParams{Limit: NoLimit, LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, titles(local))
}

func TestTaskService_FallsBackOnExternalFailure(t *testing.T) {
	t.Parallel()

	h := newTaskHarness(t)
	h.seedTask(t, map[string]any{"title": "local"})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	external := &taskSourceStub{err: errors.New("sheets unavailable")}
	svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), external, time.Second, logger)

	tasks, err := svc.List(context.Background(), member, TaskListParams{Limit: NoLimit})
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, titles(tasks))
	assert.Equal(t, 1, external.calls, "no retry against the external source")
	assert.True(t, strings.Contains(logs.String(), "falling back to record store"))

	task, err := svc.Lookup(context.Background(), member, "1")
	require.NoError(t, err)
	assert.Equal(t, "local", task.String("title"))
}

func TestTaskService_NotFoundFallbackIsLoggedAtDebug(t *testing.T) {
	t.Parallel()

	h := newTaskHarness(t)
	h.seedTask(t, map[string]any{"title": "local"})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	external := &taskSourceStub{}
	svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), external, time.Second, logger)

	task, err := svc.Lookup(context.Background(), member, "1")
	require.NoError(t, err)
	assert.Equal(t, "local", task.String("title"))
	assert.Contains(t, logs.String(), "level=DEBUG")
	assert.Contains(t, logs.String(), "not found in external source, trying record store")
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestTaskService_ExternalCallsAreBounded(t *testing.T) {
	t.Parallel()

	h := newTaskHarness(t)
	h.seedTask(t, map[string]any{"title": "local"})
	external := &taskSourceStub{delay: time.Minute}
	svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), external, 20*time.Millisecond, discardLogger())

	start := time.Now()
	tasks, err := svc.List(context.Background(), member, TaskListParams{Limit: NoLimit})
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, titles(tasks))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestTaskService_Complete(t *testing.T) {
	t.Parallel()

	t.Run("completes through the external source", func(t *testing.T) {
		t.Parallel()

		h := newTaskHarness(t)
		external := &taskSourceStub{tasks: []persistence.Record{{"external_id": "T-9", "title": "sheet task"}}}
		svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), external, time.Second, discardLogger())

		require.NoError(t, svc.Complete(context.Background(), member, "T-9"))
		assert.Equal(t, map[string]string{"T-9": member.Label}, external.completed)
	})

	t.Run("completes local records unknown to the external source", func(t *testing.T) {
		t.Parallel()

		h := newTaskHarness(t)
		rec := h.seedTask(t, map[string]any{"title": "local"})
		id, _ := rec.ID()
		external := &taskSourceStub{}
		svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), external, time.Second, discardLogger())

		require.NoError(t, svc.Complete(context.Background(), member, "1"))
		stored, err := h.store.GetByID(context.Background(), EntityTasks, id)
		require.NoError(t, err)
		assert.Equal(t, TaskStatusCompleted, stored["status"])
		assert.Equal(t, "2024-03-04T09:30:00Z", stored["completed_at"])
	})

	t.Run("reports unknown references", func(t *testing.T) {
		t.Parallel()

		h := newTaskHarness(t)
		svc := NewTaskService(h.records, NewStoreTaskSource(h.store, h.clock.Now), nil, 0, discardLogger())
		assert.ErrorIs(t, svc.Complete(context.Background(), member, "77"), ErrNotFound)
		assert.ErrorIs(t, svc.Complete(context.Background(), member, "not-a-number"), ErrNotFound)
	})
}
