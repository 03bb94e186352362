// Package sheets serves tasks from a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

// Column headers expected on the first row.
const (
	ColumnTaskID        = "Task ID"
	ColumnTitle         = "Title"
	ColumnDescription   = "Description"
	ColumnAssignee      = "Assignee"
	ColumnPriority      = "Priority"
	ColumnDueDate       = "Due Date"
	ColumnStatus        = "Status"
	ColumnCompletedDate = "Completed Date"
	ColumnCompletedBy   = "Completed By"
	ColumnTime          = "Time (minutes)"
	ColumnCreatedDate   = "Created Date"
)

// DefaultRange covers the task columns of the first sheet.
const DefaultRange = "Sheet1!A:K"

// ValuesAPI is the subset of the Sheets values API the source needs.
type ValuesAPI interface {
	Get(ctx context.Context, spreadsheetID, readRange string) ([][]any, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, data []*gsheets.ValueRange) error
}

// Config selects the spreadsheet and identity mapping.
type Config struct {
	SpreadsheetID string
	Range         string
	UserMapping   map[string]string
	ShortNames    []string
}

// Source implements application.TaskSource over a spreadsheet.
type Source struct {
	values        ValuesAPI
	spreadsheetID string
	readRange     string
	users         UserMapper
	now           func() time.Time
	logger        *slog.Logger
}

// Option customises a Source.
type Option func(*Source)

// WithClock overrides the time source used for completion dates.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

var _ application.TaskSource = (*Source)(nil)

// New builds a Source over an existing values API.
func New(values ValuesAPI, cfg Config, opts ...Option) (*Source, error) {
	if values == nil {
		return nil, errors.New("sheets: values api is required")
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}
	if cfg.UserMapping == nil {
		cfg.UserMapping = DefaultUserMapping
	}
	if cfg.ShortNames == nil {
		cfg.ShortNames = DefaultShortNames
	}

	s := &Source{
		values:        values,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     cfg.Range,
		users:         NewUserMapper(cfg.UserMapping, cfg.ShortNames),
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects to the Sheets API with the given client options, typically
// option.WithCredentialsJSON or option.WithCredentialsFile.
func Open(ctx context.Context, cfg Config, clientOpts []option.ClientOption, opts ...Option) (*Source, error) {
	clientOpts = append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}, clientOpts...)
	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return New(NewValuesAPI(svc), cfg, opts...)
}

// List implements application.TaskSource. Rows without a title are skipped.
func (s *Source) List(ctx context.Context, assignee string) ([]persistence.Record, error) {
	rows, err := s.values.Get(ctx, s.spreadsheetID, s.readRange)
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", s.readRange, err)
	}
	table := newTable(rows)

	tasks := make([]persistence.Record, 0, len(table.rows))
	for _, row := range table.rows {
		task, ok := s.toTask(table, row)
		if !ok {
			continue
		}
		if assignee != "" && task.String("assignee") != assignee {
			continue
		}
		tasks = append(tasks, task)
	}

	s.logger.DebugContext(ctx, "read tasks from sheet", "count", len(tasks), "assignee", assignee)
	return tasks, nil
}

// Get implements application.TaskSource.
func (s *Source) Get(ctx context.Context, externalID string) (persistence.Record, error) {
	rows, err := s.values.Get(ctx, s.spreadsheetID, s.readRange)
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", s.readRange, err)
	}
	table := newTable(rows)
	for _, row := range table.rows {
		if table.cell(row, ColumnTaskID) != externalID {
			continue
		}
		if task, ok := s.toTask(table, row); ok {
			return task, nil
		}
	}
	return nil, application.ErrNotFound
}

// Complete implements application.TaskSource. Status, completion date and
// completer are written in one batch update.
func (s *Source) Complete(ctx context.Context, externalID, completedBy string) (bool, error) {
	idRange := s.sheetPrefix() + "A:A"
	rows, err := s.values.Get(ctx, s.spreadsheetID, idRange)
	if err != nil {
		return false, fmt.Errorf("sheets: read %s: %w", idRange, err)
	}

	rowNumber := 0
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == externalID {
			rowNumber = i + 1
			break
		}
	}
	if rowNumber == 0 {
		s.logger.WarnContext(ctx, "task not found in sheet", "task_id", externalID)
		return false, nil
	}

	name := s.users.Name(completedBy)
	date := s.now().Format("01/02/2006")
	prefix := s.sheetPrefix()
	data := []*gsheets.ValueRange{
		{Range: fmt.Sprintf("%sG%d", prefix, rowNumber), Values: [][]any{{application.TaskStatusCompleted}}},
		{Range: fmt.Sprintf("%sH%d", prefix, rowNumber), Values: [][]any{{date}}},
		{Range: fmt.Sprintf("%sI%d", prefix, rowNumber), Values: [][]any{{name}}},
	}
	if err := s.values.BatchUpdate(ctx, s.spreadsheetID, data); err != nil {
		return false, fmt.Errorf("sheets: complete %s: %w", externalID, err)
	}

	s.logger.InfoContext(ctx, "task marked complete in sheet", "task_id", externalID, "completed_by", name)
	return true, nil
}

func (s *Source) sheetPrefix() string {
	if i := strings.LastIndex(s.readRange, "!"); i >= 0 {
		return s.readRange[:i+1]
	}
	return ""
}

func (s *Source) toTask(table table, row []any) (persistence.Record, bool) {
	title := table.cell(row, ColumnTitle)
	if title == "" {
		return nil, false
	}

	name := table.cell(row, ColumnAssignee)
	assignee := name
	if label, ok := s.users.Label(name); ok {
		assignee = label
	}
	taskID := table.cell(row, ColumnTaskID)

	return persistence.Record{
		persistence.FieldID:        taskID,
		"external_id":              taskID,
		"title":                    title,
		"description":              table.cell(row, ColumnDescription),
		"assignee":                 assignee,
		"assignee_name":            name,
		"priority":                 lowerOr(table.cell(row, ColumnPriority), "medium"),
		"due_date":                 parseSheetDate(table.cell(row, ColumnDueDate)),
		"status":                   lowerOr(table.cell(row, ColumnStatus), application.TaskStatusTodo),
		"time_to_complete_minutes": parseEffort(table.cell(row, ColumnTime)),
		"completed_at":             parseSheetDate(table.cell(row, ColumnCompletedDate)),
		"completed_by":             table.cell(row, ColumnCompletedBy),
		"is_archived":              false,
		persistence.FieldCreatedAt: parseSheetDate(table.cell(row, ColumnCreatedDate)),
		persistence.FieldUpdatedAt: persistence.Timestamp(s.now()),
		"source":                   "sheets",
	}, true
}

// table indexes rows by the header names of the first row.
type table struct {
	columns map[string]int
	rows    [][]any
}

func newTable(values [][]any) table {
	t := table{columns: map[string]int{}}
	if len(values) == 0 {
		return t
	}
	for i, header := range values[0] {
		t.columns[strings.TrimSpace(fmt.Sprint(header))] = i
	}
	t.rows = values[1:]
	return t
}

func (t table) cell(row []any, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}
