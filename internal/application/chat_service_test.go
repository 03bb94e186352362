package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_SendStoresBothTurns(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	store := newTestStore(t, clock)
	assistant := &assistantStub{answer: "Try batching errands on Saturday."}
	svc := NewChatService(store, assistant, discardLogger())
	ctx := context.Background()

	reply, err := svc.Send(ctx, member, ChatParams{Message: "How do I plan my week?", Context: "3 open tasks"})
	require.NoError(t, err)
	assert.Equal(t, "Try batching errands on Saturday.", reply.Response)
	assert.Equal(t, "2024-03-04T09:30:00Z", reply.CreatedAt)
	assert.Equal(t, []string{"How do I plan my week?"}, assistant.prompts)
	assert.Equal(t, []string{"3 open tasks"}, assistant.contexts)

	history, err := svc.History(ctx, member, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0]["role"])
	assert.Equal(t, "assistant", history[1]["role"])
}

func TestChatService_AssistantFailureIsDependencyError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, newTestClock())
	svc := NewChatService(store, &assistantStub{err: errors.New("overloaded")}, discardLogger())

	_, err := svc.Send(context.Background(), member, ChatParams{Message: "hello"})
	assert.ErrorIs(t, err, ErrDependency)
	assert.Contains(t, err.Error(), "overloaded")

	_, err = NewChatService(store, nil, discardLogger()).Send(context.Background(), member, ChatParams{Message: "hello"})
	assert.ErrorIs(t, err, ErrDependency)

	_, err = svc.Send(context.Background(), member, ChatParams{Message: " "})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestChatService_HistoryWindowAndClear(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, newTestClock())
	svc := NewChatService(store, &assistantStub{answer: "ok"}, discardLogger())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.Send(ctx, member, ChatParams{Message: fmt.Sprintf("question %d", i)})
		require.NoError(t, err)
	}

	latest, err := svc.History(ctx, member, 0, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "question 3", latest[0]["content"])
	assert.Equal(t, "ok", latest[1]["content"])

	earlier, err := svc.History(ctx, member, 2, 2)
	require.NoError(t, err)
	require.Len(t, earlier, 2)
	assert.Equal(t, "question 2", earlier[0]["content"])

	removed, err := svc.Clear(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, 6, removed)

	empty, err := svc.History(ctx, member, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
