package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskplanner/internal/persistence"
)

func newRecordService(t *testing.T) (*RecordService, *testClock) {
	t.Helper()
	clock := newTestClock()
	return NewRecordService(newTestStore(t, clock), clock.Now, discardLogger()), clock
}

func TestRecordService_TaskLifecycle(t *testing.T) {
	t.Parallel()

	svc, clock := newRecordService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, member, EntityTasks, map[string]any{
		"title":                    "Clean garage",
		"time_to_complete_minutes": float64(30),
	})
	require.NoError(t, err)

	id, ok := created.ID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "todo", created["status"])
	assert.Equal(t, "medium", created["priority"])
	assert.Equal(t, created[persistence.FieldCreatedAt], created[persistence.FieldUpdatedAt])
	assert.Nil(t, created["completed_at"])

	clock.Advance(time.Minute)
	updated, err := svc.Update(ctx, member, EntityTasks, id, map[string]any{"status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, "completed", updated["status"])
	assert.Equal(t, "2024-03-04T09:31:00Z", updated["completed_at"])
	assert.Equal(t, "Clean garage", updated["title"])
	assert.Equal(t, created[persistence.FieldCreatedAt], updated[persistence.FieldCreatedAt])
	assert.NotEqual(t, created[persistence.FieldUpdatedAt], updated[persistence.FieldUpdatedAt])

	clock.Advance(time.Minute)
	again, err := svc.Update(ctx, member, EntityTasks, id, map[string]any{"status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04T09:31:00Z", again["completed_at"], "completion time is kept on repeated completion")

	require.NoError(t, svc.Delete(ctx, member, EntityTasks, id))
	_, err = svc.Get(ctx, member, EntityTasks, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, member, EntityTasks, id), ErrNotFound)
}

func TestRecordService_CreateCompletedTaskStampsCompletion(t *testing.T) {
	t.Parallel()

	svc, _ := newRecordService(t)
	rec, err := svc.Create(context.Background(), member, EntityTasks, map[string]any{
		"title": "Already done", "time_to_complete_minutes": float64(5), "status": "completed",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04T09:30:00Z", rec["completed_at"])
}

func TestRecordService_NullCompletionTimeIsStamped(t *testing.T) {
	t.Parallel()

	svc, clock := newRecordService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, member, EntityTasks, map[string]any{"title": "Mow lawn", "time_to_complete_minutes": float64(45)})
	require.NoError(t, err)
	id, _ := created.ID()

	clock.Advance(2 * time.Minute)
	updated, err := svc.Update(ctx, member, EntityTasks, id, map[string]any{"status": "completed", "completed_at": nil})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04T09:32:00Z", updated["completed_at"])

	explicit, err := svc.Update(ctx, member, EntityTasks, id, map[string]any{"status": "completed", "completed_at": "2024-03-01T08:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:00:00Z", explicit["completed_at"])
}

func TestRecordService_ConcurrentUpdatesKeepEventWindow(t *testing.T) {
	t.Parallel()

	svc, _ := newRecordService(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		event, err := svc.Create(ctx, member, EntityCalendar, map[string]any{
			"title":      "Dentist",
			"start_time": "2024-03-05T10:00:00Z",
			"end_time":   "2024-03-05T11:00:00Z",
		})
		require.NoError(t, err)
		id, _ := event.ID()

		// Each change is valid against the stored event but not combined.
		changes := []map[string]any{
			{"start_time": "2024-03-05T10:30:00Z"},
			{"end_time": "2024-03-05T10:15:00Z"},
		}
		errs := make([]error, len(changes))
		var wg sync.WaitGroup
		for i, change := range changes {
			wg.Add(1)
			go func(i int, change map[string]any) {
				defer wg.Done()
				_, errs[i] = svc.Update(ctx, member, EntityCalendar, id, change)
			}(i, change)
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.FieldErrors, "end_time")
				failed++
			}
		}
		assert.Equal(t, 1, failed, "round %d", round)

		stored, err := svc.Get(ctx, member, EntityCalendar, id)
		require.NoError(t, err)
		start, err := ParseDatetime(stored.String("start_time"))
		require.NoError(t, err)
		end, err := ParseDatetime(stored.String("end_time"))
		require.NoError(t, err)
		assert.False(t, end.Before(start), "round %d stored %s..%s", round, start, end)
	}
}

func TestRecordService_RejectsInvalidPayloadBeforeMutation(t *testing.T) {
	t.Parallel()

	svc, _ := newRecordService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, member, EntityTasks, map[string]any{"title": "No estimate"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	all, err := svc.List(ctx, member, EntityTasks, ListParams{Limit: NoLimit})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = svc.Update(ctx, member, EntityTasks, 1, map[string]any{"priority": "whenever"})
	require.ErrorAs(t, err, &vErr)

	_, err = svc.Update(ctx, member, EntityTasks, 42, map[string]any{"priority": "high"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordService_Authorisation(t *testing.T) {
	t.Parallel()

	svc, _ := newRecordService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, Principal{}, EntityCalendar, ListParams{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	fb, err := svc.Create(ctx, member, EntityFeedback, map[string]any{
		"category": "bug", "message": "The calendar loads slowly",
	})
	require.NoError(t, err)

	_, err = svc.List(ctx, member, EntityFeedback, ListParams{})
	assert.ErrorIs(t, err, ErrForbidden)

	id, _ := fb.ID()
	assert.ErrorIs(t, svc.Delete(ctx, member, EntityFeedback, id), ErrForbidden)
	assert.NoError(t, svc.Delete(ctx, admin, EntityFeedback, id))

	_, err = svc.Create(ctx, member, EntityTeam, map[string]any{"name": "Sam"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(ctx, admin, EntityTeam, map[string]any{"name": "Sam"})
	assert.NoError(t, err)

	_, err = svc.List(ctx, admin, "access_codes", ListParams{})
	assert.ErrorIs(t, err, ErrNotFound, "internal collections are not exposed")
}

func TestRecordService_ListOrderingFiltersAndPaging(t *testing.T) {
	t.Parallel()

	svc, clock := newRecordService(t)
	ctx := context.Background()

	for _, category := range []string{"bug", "idea", "bug"} {
		_, err := svc.Create(ctx, member, EntityFeedback, map[string]any{"category": category, "message": "Something worth saying"})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	newest, err := svc.List(ctx, admin, EntityFeedback, ListParams{Limit: NoLimit})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	ids := make([]int64, 0, 3)
	for _, rec := range newest {
		id, _ := rec.ID()
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{3, 2, 1}, ids)

	bugs, err := svc.List(ctx, admin, EntityFeedback, ListParams{Filters: []Predicate{FieldEquals("category", "bug")}, Skip: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, bugs, 1)
	id, _ := bugs[0].ID()
	assert.Equal(t, int64(1), id)

	none, err := svc.List(ctx, admin, EntityFeedback, ListParams{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordService_UpcomingReminders(t *testing.T) {
	t.Parallel()

	svc, _ := newRecordService(t)
	ctx := context.Background()

	for _, payload := range []map[string]any{
		{"title": "later", "remind_at": "2024-03-06T08:00:00Z"},
		{"title": "past", "remind_at": "2024-03-01T08:00:00Z"},
		{"title": "inactive", "remind_at": "2024-03-05T08:00:00Z", "is_active": false},
		{"title": "soon", "remind_at": "2024-03-04T10:00:00Z"},
		{"title": "done", "remind_at": "2024-03-05T08:00:00Z", "is_completed": true},
	} {
		_, err := svc.Create(ctx, member, EntityReminders, payload)
		require.NoError(t, err)
	}

	upcoming, err := svc.UpcomingReminders(ctx, member, ListParams{Limit: DefaultListLimit})
	require.NoError(t, err)
	titles := make([]string, 0, len(upcoming))
	for _, rec := range upcoming {
		titles = append(titles, rec.String("title"))
	}
	assert.Equal(t, []string{"soon", "later"}, titles)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	records := []persistence.Record{{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)}}
	tests := []struct {
		name        string
		skip, limit int
		want        int
	}{
		{name: "zero limit selects nothing", skip: 0, limit: 0, want: 0},
		{name: "no limit", skip: 0, limit: NoLimit, want: 3},
		{name: "window", skip: 1, limit: 1, want: 1},
		{name: "negative skip", skip: -4, limit: 2, want: 2},
		{name: "skip past end", skip: 3, limit: 10, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(records, tt.skip, tt.limit)
			assert.NotNil(t, page)
			assert.Len(t, page, tt.want)
		})
	}
}

func TestFieldContains(t *testing.T) {
	t.Parallel()

	match := FieldContains("GARAGE", "title", "description")
	assert.True(t, match(persistence.Record{"title": "Clean garage"}))
	assert.True(t, match(persistence.Record{"title": "x", "description": "the Garage door"}))
	assert.False(t, match(persistence.Record{"title": "Kitchen"}))
}
