package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/taskplanner/internal/persistence"
)

// TaskSource is a backing source able to list, fetch and complete tasks.
type TaskSource interface {
	// List returns tasks assigned to assignee, or all tasks when assignee is empty.
	List(ctx context.Context, assignee string) ([]persistence.Record, error)
	// Get returns ErrNotFound when the task does not exist.
	Get(ctx context.Context, externalID string) (persistence.Record, error)
	// Complete reports false when the task does not exist.
	Complete(ctx context.Context, externalID, completedBy string) (bool, error)
}

// StoreTaskSource serves tasks from the record store. External ids are decimal record ids.
type StoreTaskSource struct {
	store persistence.Store
	now   func() time.Time
}

// NewStoreTaskSource constructs the record store task source.
func NewStoreTaskSource(store persistence.Store, now func() time.Time) *StoreTaskSource {
	if now == nil {
		now = time.Now
	}
	return &StoreTaskSource{store: store, now: now}
}

// List implements TaskSource.
func (s *StoreTaskSource) List(ctx context.Context, assignee string) ([]persistence.Record, error) {
	tasks, err := s.store.GetAll(ctx, EntityTasks)
	if err != nil {
		return nil, err
	}
	if assignee == "" {
		return tasks, nil
	}
	return Filter(tasks, FieldEquals("assignee", assignee)), nil
}

// Get implements TaskSource.
func (s *StoreTaskSource) Get(ctx context.Context, externalID string) (persistence.Record, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	rec, err := s.store.GetByID(ctx, EntityTasks, id)
	return rec, storeError(err)
}

// Complete implements TaskSource.
func (s *StoreTaskSource) Complete(ctx context.Context, externalID, _ string) (bool, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
	if err != nil {
		return false, nil
	}
	_, err = s.store.Update(ctx, EntityTasks, id, persistence.Record{
		"status":       TaskStatusCompleted,
		"completed_at": FormatDatetime(s.now()),
	})
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DefaultTaskSourceTimeout bounds each call to an external task source.
const DefaultTaskSourceTimeout = 10 * time.Second

// TaskService serves tasks from the record store and, when configured, an
// external task source. External failures fall back to the record store.
type TaskService struct {
	records  *RecordService
	local    TaskSource
	external TaskSource
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTaskService constructs a TaskService. external may be nil.
func NewTaskService(records *RecordService, local, external TaskSource, timeout time.Duration, logger *slog.Logger) *TaskService {
	if timeout <= 0 {
		timeout = DefaultTaskSourceTimeout
	}
	return &TaskService{
		records:  records,
		local:    local,
		external: external,
		timeout:  timeout,
		logger:   defaultLogger(logger),
	}
}

func (s *TaskService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TaskService", operation, attrs...)
}

// ExternalConfigured reports whether an external task source is wired in.
func (s *TaskService) ExternalConfigured() bool {
	return s != nil && s.external != nil
}

// List returns tasks, excluding archived ones unless asked for.
func (s *TaskService) List(ctx context.Context, principal Principal, params TaskListParams) ([]persistence.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("TaskService is nil")
	}
	if err := Authorize(principal, RoleMember); err != nil {
		return nil, err
	}

	var filters []Predicate
	if !params.IncludeArchived {
		filters = append(filters, FlagIs("is_archived", false, false))
	}

	if s.external == nil || params.LocalOnly {
		if params.Assignee != "" {
			filters = append(filters, FieldEquals("assignee", params.Assignee))
		}
		return s.records.List(ctx, principal, EntityTasks, ListParams{Skip: params.Skip, Limit: params.Limit, Filters: filters})
	}

	var tasks []persistence.Record
	err := s.withFallback(ctx, "List", func(ctx context.Context, source TaskSource) error {
		var err error
		tasks, err = source.List(ctx, params.Assignee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Paginate(Filter(tasks, filters...), params.Skip, params.Limit), nil
}

// Lookup resolves a task reference through the configured source.
func (s *TaskService) Lookup(ctx context.Context, principal Principal, ref string) (persistence.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("TaskService is nil")
	}
	if err := Authorize(principal, RoleMember); err != nil {
		return nil, err
	}

	var task persistence.Record
	err := s.withFallback(ctx, "Get", func(ctx context.Context, source TaskSource) error {
		var err error
		task, err = source.Get(ctx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Complete marks a task complete on the configured source. The record store
// is consulted when the external source does not know the reference.
func (s *TaskService) Complete(ctx context.Context, principal Principal, ref string) (err error) {
	if s == nil {
		return fmt.Errorf("TaskService is nil")
	}
	logger := s.loggerWith(ctx, "Complete", "task_ref", ref, "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task completed")
	}()

	if err = Authorize(principal, RoleMember); err != nil {
		return err
	}

	var done, servedLocally bool
	err = s.withFallback(ctx, "Complete", func(ctx context.Context, source TaskSource) error {
		var err error
		servedLocally = source == s.local
		done, err = source.Complete(ctx, ref, principal.Label)
		return err
	})
	if err != nil {
		return err
	}
	if !done && !servedLocally {
		done, err = s.local.Complete(ctx, ref, principal.Label)
		if err != nil {
			return err
		}
	}
	if !done {
		return ErrNotFound
	}
	return nil
}

// Archive hides a task from default listings.
func (s *TaskService) Archive(ctx context.Context, principal Principal, id int64) (persistence.Record, error) {
	return s.records.Update(ctx, principal, EntityTasks, id, map[string]any{"is_archived": true})
}

// Unarchive restores an archived task.
func (s *TaskService) Unarchive(ctx context.Context, principal Principal, id int64) (persistence.Record, error) {
	return s.records.Update(ctx, principal, EntityTasks, id, map[string]any{"is_archived": false})
}

// withFallback runs fn against the external source under a timeout and then,
// if that failed, against the record store. No store lock is held while the
// external call is in flight.
func (s *TaskService) withFallback(ctx context.Context, operation string, fn func(context.Context, TaskSource) error) error {
	if s.external == nil {
		return fn(ctx, s.local)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := fn(callCtx, s.external)
	cancel()
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		// The reference may name a local record.
		s.loggerWith(ctx, operation).DebugContext(ctx, "not found in external source, trying record store")
		return fn(ctx, s.local)
	}

	s.loggerWith(ctx, operation).WarnContext(ctx, "falling back to record store",
		"error", err,
		"error_kind", ErrorKind(err),
	)
	return fn(ctx, s.local)
}
