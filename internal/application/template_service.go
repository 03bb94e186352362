package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/taskplanner/internal/persistence"
)

// TemplateService imports task templates in bulk.
type TemplateService struct {
	records *RecordService
	logger  *slog.Logger
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(records *RecordService, logger *slog.Logger) *TemplateService {
	return &TemplateService{records: records, logger: defaultLogger(logger)}
}

// BulkImport creates a template per entry. Entries that are not objects or
// fail validation are skipped; storage failures abort the import.
func (s *TemplateService) BulkImport(ctx context.Context, principal Principal, entries []any) (imported []persistence.Record, err error) {
	logger := serviceLogger(ctx, s.logger, "TemplateService", "BulkImport", "entries", len(entries))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "template import failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "templates imported", "count", len(imported))
	}()

	if err = Authorize(principal, RoleMember); err != nil {
		return nil, err
	}

	imported = make([]persistence.Record, 0, len(entries))
	for i, entry := range entries {
		payload, ok := entry.(map[string]any)
		if !ok {
			logger.WarnContext(ctx, "skipping template that is not an object", "index", i)
			continue
		}
		rec, createErr := s.records.Create(ctx, principal, EntityTaskTemplates, payload)
		var vErr *ValidationError
		if errors.As(createErr, &vErr) {
			logger.WarnContext(ctx, "skipping invalid template", "index", i, "errors", vErr.FieldErrors)
			continue
		}
		if createErr != nil {
			return imported, createErr
		}
		imported = append(imported, rec)
	}
	return imported, nil
}
