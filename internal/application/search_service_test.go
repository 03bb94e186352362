package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchData(t *testing.T, records *RecordService) {
	t.Helper()
	ctx := context.Background()
	creates := []struct {
		entity  string
		payload map[string]any
	}{
		{EntityTasks, map[string]any{"title": "Fix garage door", "time_to_complete_minutes": float64(45)}},
		{EntityTasks, map[string]any{"title": "Groceries", "description": "milk", "time_to_complete_minutes": float64(20)}},
		{EntityCalendar, map[string]any{"title": "Garage sale", "start_time": "2024-03-09T09:00:00Z", "end_time": "2024-03-09T12:00:00Z"}},
		{EntityKnowledge, map[string]any{"title": "Tools", "content": "The garage key is " + strings.Repeat("x", 250)}},
		{EntityDocuments, map[string]any{"title": "Warranty", "description": "Garage opener warranty", "file_type": "pdf"}},
	}
	for _, c := range creates {
		_, err := records.Create(ctx, member, c.entity, c.payload)
		require.NoError(t, err)
	}
}

func TestSearchService_Search(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	store := newTestStore(t, clock)
	seedSearchData(t, NewRecordService(store, clock.Now, discardLogger()))
	svc := NewSearchService(store, nil, discardLogger())

	result, err := svc.Search(context.Background(), member, SearchParams{Query: "GARAGE"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalResults)
	require.Len(t, result.Results[CategoryTasks], 1)
	assert.Equal(t, "Fix garage door", result.Results[CategoryTasks][0]["title"])
	assert.Contains(t, result.Results[CategoryTasks][0], "status")
	assert.NotContains(t, result.Results[CategoryTasks][0], "created_at")
	assert.Len(t, result.Results[CategoryEvents], 1)
	assert.Empty(t, result.Results[CategoryReminders])

	snippet := result.Results[CategoryKnowledge][0]["content"].(string)
	assert.Equal(t, 203, len(snippet))
	assert.True(t, strings.HasSuffix(snippet, "..."))

	only, err := svc.Search(context.Background(), member, SearchParams{Query: "garage", Categories: []string{"documents"}})
	require.NoError(t, err)
	assert.Equal(t, 1, only.TotalResults)
	assert.Empty(t, only.Results[CategoryTasks])

	_, err = svc.Search(context.Background(), member, SearchParams{Query: ""})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestSearchService_SearchCapsResultsPerCategory(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	store := newTestStore(t, clock)
	records := NewRecordService(store, clock.Now, discardLogger())
	for i := 0; i < 12; i++ {
		_, err := records.Create(context.Background(), member, EntityReminders, map[string]any{"title": "water plants", "remind_at": "2024-03-05"})
		require.NoError(t, err)
	}

	result, err := NewSearchService(store, nil, discardLogger()).Search(context.Background(), member, SearchParams{Query: "plants"})
	require.NoError(t, err)
	assert.Len(t, result.Results[CategoryReminders], 10)
}

func TestSearchService_AISearch(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	store := newTestStore(t, clock)
	seedSearchData(t, NewRecordService(store, clock.Now, discardLogger()))
	assistant := &assistantStub{answer: "The garage door task is the most relevant."}
	svc := NewSearchService(store, assistant, discardLogger())

	analysis, err := svc.AISearch(context.Background(), member, "garage")
	require.NoError(t, err)
	assert.Equal(t, "The garage door task is the most relevant.", analysis)
	assert.Equal(t, []string{"garage"}, assistant.searches)
	assert.Contains(t, assistant.searchCtx, "Tasks:\n- Fix garage door: No description\n- Groceries: milk\n")
	assert.Contains(t, assistant.searchCtx, "Documents:\n- Warranty: Garage opener warranty\n")

	assistant.err = errors.New("timeout")
	_, err = svc.AISearch(context.Background(), member, "garage")
	assert.ErrorIs(t, err, ErrDependency)
}
