package http

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
)

// decodeObject reads a JSON object body, keeping numbers as json.Number so
// integer fields survive unchanged.
func decodeObject(c echo.Context) (map[string]any, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", errBadRequestBody)
	}
	return payload, nil
}

// decodeInto reads a JSON body into a typed request.
func decodeInto(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, &application.ValidationError{FieldErrors: map[string]string{"id": "must be an integer"}}
	}
	return id, nil
}

// listParams reads skip and limit.
func listParams(c echo.Context) (application.ListParams, error) {
	var (
		params application.ListParams
		vErr   application.ValidationError
	)
	params.Skip = queryInt(c, "skip", 0, &vErr)
	params.Limit = queryInt(c, "limit", application.DefaultListLimit, &vErr)
	if vErr.HasErrors() {
		return application.ListParams{}, &vErr
	}
	return params, nil
}

func queryInt(c echo.Context, name string, fallback int, vErr *application.ValidationError) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		addFieldError(vErr, name, "must be a non-negative integer")
		return fallback
	}
	return n
}

func queryBool(c echo.Context, name string, vErr *application.ValidationError) bool {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		addFieldError(vErr, name, "must be a boolean")
		return false
	}
	return b
}

func addFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = map[string]string{}
	}
	if _, exists := vErr.FieldErrors[field]; !exists {
		vErr.FieldErrors[field] = message
	}
}
