package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

type searchService interface {
	Search(ctx context.Context, principal application.Principal, params application.SearchParams) (application.SearchResult, error)
	AISearch(ctx context.Context, principal application.Principal, query string) (string, error)
}

// SearchHandler serves global and AI assisted search.
type SearchHandler struct {
	service   searchService
	responder responder
}

func NewSearchHandler(service searchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: service, responder: newResponder(logger)}
}

type searchRequest struct {
	Query      string   `json:"query"`
	Categories []string `json:"categories"`
}

type searchResponse struct {
	Query        string                          `json:"query"`
	Results      map[string][]persistence.Record `json:"results"`
	TotalResults int                             `json:"total_results"`
}

type aiSearchResponse struct {
	Query      string `json:"query"`
	AIAnalysis string `json:"ai_analysis"`
}

// Search serves POST /search.
func (h *SearchHandler) Search(c echo.Context) error {
	var req searchRequest
	if err := decodeInto(c, &req); err != nil {
		return h.responder.badRequest(c, err)
	}
	result, err := h.service.Search(c.Request().Context(), principalFrom(c), application.SearchParams(req))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, searchResponse{
		Query:        result.Query,
		Results:      result.Results,
		TotalResults: result.TotalResults,
	})
}

// AISearch serves POST /search/ai.
func (h *SearchHandler) AISearch(c echo.Context) error {
	var req searchRequest
	if err := decodeInto(c, &req); err != nil {
		return h.responder.badRequest(c, err)
	}
	analysis, err := h.service.AISearch(c.Request().Context(), principalFrom(c), req.Query)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, aiSearchResponse{Query: req.Query, AIAnalysis: analysis})
}
