package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/taskplanner/internal/persistence"
)

// Search categories.
const (
	CategoryTasks     = "tasks"
	CategoryEvents    = "events"
	CategoryReminders = "reminders"
	CategoryKnowledge = "knowledge"
	CategoryDocuments = "documents"
)

const (
	searchResultsPerCategory = 10
	searchSnippetLength      = 200
	aiContextPerCategory     = 50
)

type searchCategory struct {
	name    string
	entity  string
	match   []string
	project []string
}

var searchCategories = []searchCategory{
	{CategoryTasks, EntityTasks, []string{"title", "description"}, []string{"id", "title", "description", "status", "priority"}},
	{CategoryEvents, EntityCalendar, []string{"title", "description"}, []string{"id", "title", "description", "start_time", "end_time"}},
	{CategoryReminders, EntityReminders, []string{"title", "description"}, []string{"id", "title", "description", "remind_at"}},
	{CategoryKnowledge, EntityKnowledge, []string{"title", "content"}, []string{"id", "title", "content", "category"}},
	{CategoryDocuments, EntityDocuments, []string{"title", "description"}, []string{"id", "title", "description", "file_type", "url"}},
}

// SearchService runs substring search across collections and AI search.
type SearchService struct {
	store     persistence.Store
	assistant Assistant
	logger    *slog.Logger
}

// NewSearchService constructs a SearchService. assistant may be nil.
func NewSearchService(store persistence.Store, assistant Assistant, logger *slog.Logger) *SearchService {
	return &SearchService{store: store, assistant: assistant, logger: defaultLogger(logger)}
}

// Search returns up to ten case-insensitive substring matches per category.
func (s *SearchService) Search(ctx context.Context, principal Principal, params SearchParams) (SearchResult, error) {
	if err := Authorize(principal, RoleMember); err != nil {
		return SearchResult{}, err
	}
	if strings.TrimSpace(params.Query) == "" {
		return SearchResult{}, &ValidationError{FieldErrors: map[string]string{"query": "is required"}}
	}

	wanted := make(map[string]bool, len(params.Categories))
	for _, c := range params.Categories {
		wanted[strings.ToLower(strings.TrimSpace(c))] = true
	}

	result := SearchResult{Query: params.Query, Results: make(map[string][]persistence.Record, len(searchCategories))}
	for _, category := range searchCategories {
		result.Results[category.name] = []persistence.Record{}
		if len(wanted) > 0 && !wanted[category.name] {
			continue
		}

		records, err := s.store.GetAll(ctx, category.entity)
		if err != nil {
			return SearchResult{}, err
		}
		matches := Paginate(Filter(records, FieldContains(params.Query, category.match...)), 0, searchResultsPerCategory)
		projected := make([]persistence.Record, 0, len(matches))
		for _, rec := range matches {
			projected = append(projected, project(rec, category.project))
		}
		result.Results[category.name] = projected
		result.TotalResults += len(projected)
	}

	serviceLogger(ctx, s.logger, "SearchService", "Search").DebugContext(ctx, "search completed", "total_results", result.TotalResults)
	return result, nil
}

// AISearch asks the assistant to analyse recent records for the query.
func (s *SearchService) AISearch(ctx context.Context, principal Principal, query string) (analysis string, err error) {
	logger := serviceLogger(ctx, s.logger, "SearchService", "AISearch")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "ai search failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if err = Authorize(principal, RoleMember); err != nil {
		return
	}
	if strings.TrimSpace(query) == "" {
		err = &ValidationError{FieldErrors: map[string]string{"query": "is required"}}
		return
	}
	if s.assistant == nil {
		err = dependencyError("assistant", errAssistantNotConfigured)
		return
	}

	var data string
	if data, err = s.searchContext(ctx); err != nil {
		return
	}
	analysis, err = s.assistant.Search(ctx, query, data)
	if err != nil {
		err = dependencyError("assistant", err)
	}
	return
}

func (s *SearchService) searchContext(ctx context.Context) (string, error) {
	sections := []struct {
		heading string
		entity  string
		detail  func(persistence.Record) string
	}{
		{"Tasks", EntityTasks, describedBy("description")},
		{"Calendar Events", EntityCalendar, describedBy("description")},
		{"Knowledge Base", EntityKnowledge, func(rec persistence.Record) string {
			return truncate(rec.String("content"), 100) + "..."
		}},
		{"Documents", EntityDocuments, describedBy("description")},
	}

	var b strings.Builder
	for _, section := range sections {
		records, err := s.store.GetAll(ctx, section.entity)
		if err != nil {
			return "", fmt.Errorf("load %s: %w", section.entity, err)
		}
		fmt.Fprintf(&b, "%s:\n", section.heading)
		for _, rec := range Paginate(records, 0, aiContextPerCategory) {
			fmt.Fprintf(&b, "- %s: %s\n", rec.String("title"), section.detail(rec))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func describedBy(field string) func(persistence.Record) string {
	return func(rec persistence.Record) string {
		if d := rec.String(field); d != "" {
			return d
		}
		return "No description"
	}
}

func project(rec persistence.Record, fields []string) persistence.Record {
	out := make(persistence.Record, len(fields))
	for _, field := range fields {
		value := rec[field]
		if field == "content" {
			if s, ok := value.(string); ok && len([]rune(s)) > searchSnippetLength {
				value = truncate(s, searchSnippetLength) + "..."
			}
		}
		out[field] = value
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
