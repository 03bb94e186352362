package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/taskplanner/internal/persistence"
)

// Collection binds an entity to its schema and the roles allowed to use it.
type Collection struct {
	Schema     *Schema
	ReadRole   Role
	WriteRole  Role
	DeleteRole Role
	// NewestFirst reverses listings so the latest records come first.
	NewestFirst bool
	// BeforeCreate and BeforeUpdate adjust validated fields before they reach the store.
	BeforeCreate func(rec persistence.Record, now time.Time)
	BeforeUpdate func(existing, changes persistence.Record, now time.Time)
}

// DefaultCollections returns the entities served through RecordService.
func DefaultCollections() map[string]Collection {
	return map[string]Collection{
		EntityTasks: {
			Schema: TaskSchema, ReadRole: RoleMember, WriteRole: RoleMember, DeleteRole: RoleMember,
			BeforeCreate: stampTaskCompletion,
			BeforeUpdate: stampTaskTransition,
		},
		EntityCalendar:      memberCollection(CalendarSchema),
		EntityReminders:     memberCollection(ReminderSchema),
		EntityKnowledge:     memberCollection(KnowledgeSchema),
		EntityDocuments:     memberCollection(DocumentSchema),
		EntityTaskTemplates: memberCollection(TaskTemplateSchema),
		EntityFeedback: {
			Schema: FeedbackSchema, ReadRole: RoleAdmin, WriteRole: RoleMember, DeleteRole: RoleAdmin,
			NewestFirst: true,
		},
		EntityTeam: {
			Schema: TeamMemberSchema, ReadRole: RoleMember, WriteRole: RoleAdmin, DeleteRole: RoleAdmin,
		},
	}
}

func memberCollection(schema *Schema) Collection {
	return Collection{Schema: schema, ReadRole: RoleMember, WriteRole: RoleMember, DeleteRole: RoleMember}
}

// RecordService validates and authorises CRUD on the generic entity collections.
type RecordService struct {
	store       persistence.Store
	collections map[string]Collection
	now         func() time.Time
	logger      *slog.Logger
	// guards makes the read-check-write of a merged update atomic per entity.
	guards *persistence.Locks
}

// NewRecordService constructs a RecordService over the default collections.
func NewRecordService(store persistence.Store, now func() time.Time, logger *slog.Logger) *RecordService {
	if now == nil {
		now = time.Now
	}
	return &RecordService{
		store:       store,
		collections: DefaultCollections(),
		now:         now,
		logger:      defaultLogger(logger),
		guards:      persistence.NewLocks(),
	}
}

func (s *RecordService) loggerWith(ctx context.Context, operation, entity string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RecordService", operation, append([]any{"entity", entity}, attrs...)...)
}

func (s *RecordService) collection(entity string) (Collection, error) {
	if s == nil {
		return Collection{}, fmt.Errorf("RecordService is nil")
	}
	if s.store == nil {
		return Collection{}, fmt.Errorf("record store not configured")
	}
	c, ok := s.collections[entity]
	if !ok {
		return Collection{}, ErrNotFound
	}
	return c, nil
}

// List returns the records matching every filter, paginated after filtering.
func (s *RecordService) List(ctx context.Context, principal Principal, entity string, params ListParams) (records []persistence.Record, err error) {
	logger := s.loggerWith(ctx, "List", entity, "skip", params.Skip, "limit", params.Limit)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list records", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "listed records", "count", len(records))
	}()

	var c Collection
	if c, err = s.collection(entity); err != nil {
		return nil, err
	}
	if err = Authorize(principal, c.ReadRole); err != nil {
		return nil, err
	}

	var all []persistence.Record
	if all, err = s.store.GetAll(ctx, entity); err != nil {
		return nil, err
	}
	if c.NewestFirst {
		slices.Reverse(all)
	}
	return Paginate(Filter(all, params.Filters...), params.Skip, params.Limit), nil
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, principal Principal, entity string, id int64) (rec persistence.Record, err error) {
	var c Collection
	if c, err = s.collection(entity); err != nil {
		return nil, err
	}
	if err = Authorize(principal, c.ReadRole); err != nil {
		return nil, err
	}

	rec, err = s.store.GetByID(ctx, entity, id)
	return rec, storeError(err)
}

// Create validates payload and stores it as a new record.
func (s *RecordService) Create(ctx context.Context, principal Principal, entity string, payload map[string]any) (rec persistence.Record, err error) {
	logger := s.loggerWith(ctx, "Create", entity, "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		id, _ := rec.ID()
		logger.InfoContext(ctx, "record created", "id", id)
	}()

	var c Collection
	if c, err = s.collection(entity); err != nil {
		return nil, err
	}
	if err = Authorize(principal, c.WriteRole); err != nil {
		return nil, err
	}

	var fields persistence.Record
	if fields, err = c.Schema.Validate(payload, ModeCreate); err != nil {
		return nil, err
	}
	if c.BeforeCreate != nil {
		c.BeforeCreate(fields, s.now())
	}
	return s.store.Create(ctx, entity, fields)
}

// Update validates a partial payload and merges it into the stored record.
func (s *RecordService) Update(ctx context.Context, principal Principal, entity string, id int64, payload map[string]any) (rec persistence.Record, err error) {
	logger := s.loggerWith(ctx, "Update", entity, "id", id, "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "record updated")
	}()

	var c Collection
	if c, err = s.collection(entity); err != nil {
		return nil, err
	}
	if err = Authorize(principal, c.WriteRole); err != nil {
		return nil, err
	}

	var changes persistence.Record
	if changes, err = c.Schema.Validate(payload, ModeUpdate); err != nil {
		return nil, err
	}

	if c.Schema.Check != nil || c.BeforeUpdate != nil {
		mu := s.guards.For(entity)
		mu.Lock()
		defer mu.Unlock()

		var existing persistence.Record
		if existing, err = s.store.GetByID(ctx, entity, id); err != nil {
			return nil, storeError(err)
		}
		if err = c.Schema.CheckMerged(existing, changes); err != nil {
			return nil, err
		}
		if c.BeforeUpdate != nil {
			c.BeforeUpdate(existing, changes, s.now())
		}
	}

	rec, err = s.store.Update(ctx, entity, id, changes)
	return rec, storeError(err)
}

// Delete removes a record. Deleting an absent record reports ErrNotFound.
func (s *RecordService) Delete(ctx context.Context, principal Principal, entity string, id int64) (err error) {
	logger := s.loggerWith(ctx, "Delete", entity, "id", id, "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "record deleted")
	}()

	var c Collection
	if c, err = s.collection(entity); err != nil {
		return err
	}
	if err = Authorize(principal, c.DeleteRole); err != nil {
		return err
	}

	var removed bool
	if removed, err = s.store.Delete(ctx, entity, id); err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// UpcomingReminders lists active, incomplete reminders due from now on, soonest first.
func (s *RecordService) UpcomingReminders(ctx context.Context, principal Principal, params ListParams) ([]persistence.Record, error) {
	now := s.now()
	upcoming := func(rec persistence.Record) bool {
		if !rec.Bool("is_active", true) || rec.Bool("is_completed", false) {
			return false
		}
		at, err := ParseDatetime(rec.String("remind_at"))
		return err == nil && !at.Before(now)
	}

	all, err := s.List(ctx, principal, EntityReminders, ListParams{Limit: NoLimit, Filters: append([]Predicate{upcoming}, params.Filters...)})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, _ := ParseDatetime(all[i].String("remind_at"))
		b, _ := ParseDatetime(all[j].String("remind_at"))
		return a.Before(b)
	})
	return Paginate(all, params.Skip, params.Limit), nil
}

func stampTaskCompletion(rec persistence.Record, now time.Time) {
	if rec.String("status") == TaskStatusCompleted && rec["completed_at"] == nil {
		rec["completed_at"] = FormatDatetime(now)
	}
}

func stampTaskTransition(existing, changes persistence.Record, now time.Time) {
	if changes.String("status") != TaskStatusCompleted {
		return
	}
	if v, explicit := changes["completed_at"]; explicit && v != nil {
		return
	}
	if existing.String("status") == TaskStatusCompleted && existing["completed_at"] != nil {
		return
	}
	changes["completed_at"] = FormatDatetime(now)
}

// Filter keeps the records accepted by every predicate.
func Filter(records []persistence.Record, predicates ...Predicate) []persistence.Record {
	if len(predicates) == 0 {
		return records
	}
	out := make([]persistence.Record, 0, len(records))
	for _, rec := range records {
		keep := true
		for _, p := range predicates {
			if p != nil && !p(rec) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out
}

// Paginate applies skip and limit. A zero limit yields an empty page and a
// negative limit means no limit.
func Paginate(records []persistence.Record, skip, limit int) []persistence.Record {
	if skip < 0 {
		skip = 0
	}
	if limit == 0 || skip >= len(records) {
		return []persistence.Record{}
	}
	records = records[skip:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// FieldEquals matches records whose string field equals value exactly.
func FieldEquals(field, value string) Predicate {
	return func(rec persistence.Record) bool {
		return rec.String(field) == value
	}
}

// FieldContains matches records where any of fields contains term, ignoring case.
func FieldContains(term string, fields ...string) Predicate {
	term = strings.ToLower(term)
	return func(rec persistence.Record) bool {
		for _, field := range fields {
			if strings.Contains(strings.ToLower(rec.String(field)), term) {
				return true
			}
		}
		return false
	}
}

// FlagIs matches records whose boolean field equals want. Absent fields read as fallback.
func FlagIs(field string, want, fallback bool) Predicate {
	return func(rec persistence.Record) bool {
		return rec.Bool(field, fallback) == want
	}
}
