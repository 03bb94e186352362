package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

type recordService interface {
	List(ctx context.Context, principal application.Principal, entity string, params application.ListParams) ([]persistence.Record, error)
	Get(ctx context.Context, principal application.Principal, entity string, id int64) (persistence.Record, error)
	Create(ctx context.Context, principal application.Principal, entity string, payload map[string]any) (persistence.Record, error)
	Update(ctx context.Context, principal application.Principal, entity string, id int64, payload map[string]any) (persistence.Record, error)
	Delete(ctx context.Context, principal application.Principal, entity string, id int64) error
	UpcomingReminders(ctx context.Context, principal application.Principal, params application.ListParams) ([]persistence.Record, error)
}

// queryFilter turns query parameters into list predicates.
type queryFilter func(c echo.Context) ([]application.Predicate, error)

// RecordHandler serves the generic collection routes. Each method returns a
// handler bound to one entity.
type RecordHandler struct {
	service   recordService
	responder responder
	logger    *slog.Logger
}

func NewRecordHandler(service recordService, logger *slog.Logger) *RecordHandler {
	base := defaultLogger(logger)
	return &RecordHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RecordHandler) log(c echo.Context, operation, entity string, attrs ...any) *slog.Logger {
	attrs = append([]any{"entity", entity}, attrs...)
	return handlerLogger(c.Request().Context(), h.logger, "RecordHandler", operation, attrs...)
}

// List serves GET /<entity>. wrap, when set, names the key the list is
// returned under.
func (h *RecordHandler) List(entity, wrap string, filters ...queryFilter) echo.HandlerFunc {
	return func(c echo.Context) error {
		params, err := listParams(c)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		for _, filter := range filters {
			predicates, err := filter(c)
			if err != nil {
				return h.responder.handleServiceError(c, err)
			}
			params.Filters = append(params.Filters, predicates...)
		}

		records, err := h.service.List(c.Request().Context(), principalFrom(c), entity, params)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		if wrap != "" {
			return h.responder.writeJSON(c, http.StatusOK, map[string]any{wrap: nonNil(records)})
		}
		return h.responder.writeJSON(c, http.StatusOK, nonNil(records))
	}
}

// Get serves GET /<entity>/:id.
func (h *RecordHandler) Get(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		rec, err := h.service.Get(c.Request().Context(), principalFrom(c), entity, id)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		return h.responder.writeJSON(c, http.StatusOK, rec)
	}
}

// Create serves POST /<entity>.
func (h *RecordHandler) Create(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, err := decodeObject(c)
		if err != nil {
			h.log(c, "Create", entity, "error_kind", "bad_request").WarnContext(c.Request().Context(), "failed to decode request", "error", err)
			return h.responder.badRequest(c, err)
		}
		rec, err := h.service.Create(c.Request().Context(), principalFrom(c), entity, payload)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		return h.responder.writeJSON(c, http.StatusCreated, rec)
	}
}

// Update serves PUT /<entity>/:id.
func (h *RecordHandler) Update(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		payload, err := decodeObject(c)
		if err != nil {
			h.log(c, "Update", entity, "id", id, "error_kind", "bad_request").WarnContext(c.Request().Context(), "failed to decode request", "error", err)
			return h.responder.badRequest(c, err)
		}
		rec, err := h.service.Update(c.Request().Context(), principalFrom(c), entity, id, payload)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		return h.responder.writeJSON(c, http.StatusOK, rec)
	}
}

// Delete serves DELETE /<entity>/:id.
func (h *RecordHandler) Delete(entity string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		if err := h.service.Delete(c.Request().Context(), principalFrom(c), entity, id); err != nil {
			return h.responder.handleServiceError(c, err)
		}
		return h.responder.writeJSON(c, http.StatusNoContent, nil)
	}
}

// Upcoming serves GET /reminders/upcoming.
func (h *RecordHandler) Upcoming(c echo.Context) error {
	params, err := listParams(c)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	records, err := h.service.UpcomingReminders(c.Request().Context(), principalFrom(c), params)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, nonNil(records))
}

// equalsQuery filters on field when the query parameter is present.
func equalsQuery(param, field string) queryFilter {
	return func(c echo.Context) ([]application.Predicate, error) {
		value := strings.TrimSpace(c.QueryParam(param))
		if value == "" {
			return nil, nil
		}
		return []application.Predicate{application.FieldEquals(field, value)}, nil
	}
}

// flagQuery keeps records whose flag is true when the query parameter is true.
func flagQuery(param, field string, fallback bool) queryFilter {
	return func(c echo.Context) ([]application.Predicate, error) {
		var vErr application.ValidationError
		on := queryBool(c, param, &vErr)
		if vErr.HasErrors() {
			return nil, &vErr
		}
		if !on {
			return nil, nil
		}
		return []application.Predicate{application.FlagIs(field, true, fallback)}, nil
	}
}

// termPath matches the :term path parameter against fields.
func termPath(fields ...string) queryFilter {
	return func(c echo.Context) ([]application.Predicate, error) {
		return []application.Predicate{application.FieldContains(c.Param("term"), fields...)}, nil
	}
}

func nonNil(records []persistence.Record) []persistence.Record {
	if records == nil {
		return []persistence.Record{}
	}
	return records
}
