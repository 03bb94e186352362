package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/taskplanner/internal/persistence"
	"github.com/example/taskplanner/internal/persistence/jsonfile"
)

const testSecretKey = "test-secret-key-0123456789"

var (
	member = Principal{Label: "SAM (9127SAM)", Role: RoleMember}
	admin  = Principal{Label: "RFB - Admin (9566RFB)", Role: RoleAdmin}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, clock *testClock) *jsonfile.Store {
	t.Helper()
	store, err := jsonfile.Open(t.TempDir(), jsonfile.WithClock(clock.Now), jsonfile.WithLogger(discardLogger()))
	require.NoError(t, err)
	return store
}

type assistantStub struct {
	mu        sync.Mutex
	answer    string
	err       error
	prompts   []string
	contexts  []string
	searches  []string
	searchCtx string
}

func (a *assistantStub) Ask(_ context.Context, prompt, chatContext string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	a.contexts = append(a.contexts, chatContext)
	return a.answer, a.err
}

func (a *assistantStub) Search(_ context.Context, query, data string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches = append(a.searches, query)
	a.searchCtx = data
	return a.answer, a.err
}

type taskSourceStub struct {
	mu        sync.Mutex
	tasks     []persistence.Record
	err       error
	completed map[string]string
	calls     int
	delay     time.Duration
}

func (s *taskSourceStub) wait(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	delay := s.delay
	s.mu.Unlock()
	if delay == 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *taskSourceStub) List(ctx context.Context, assignee string) ([]persistence.Record, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if assignee == "" {
		return s.tasks, nil
	}
	return Filter(s.tasks, FieldEquals("assignee", assignee)), nil
}

func (s *taskSourceStub) Get(ctx context.Context, externalID string) (persistence.Record, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	for _, task := range s.tasks {
		if task.String("external_id") == externalID {
			return task, nil
		}
	}
	return nil, ErrNotFound
}

func (s *taskSourceStub) Complete(ctx context.Context, externalID, completedBy string) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	if s.err != nil {
		return false, s.err
	}
	for _, task := range s.tasks {
		if task.String("external_id") == externalID {
			s.mu.Lock()
			if s.completed == nil {
				s.completed = map[string]string{}
			}
			s.completed[externalID] = completedBy
			s.mu.Unlock()
			return true, nil
		}
	}
	return false, nil
}
