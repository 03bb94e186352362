// Package http exposes the planner over JSON on echo.
//
// Every route except /health, /auth/login and /auth/logout requires an
// `Authorization: Bearer <token>` header carrying a token issued by
// POST /auth/login. Collections are served by RecordHandler; tasks add
// archive, unarchive and complete actions through TaskHandler, which may be
// backed by an external spreadsheet. Admin-only routes live under /admin.
//
// Errors share one body: {"error_code","message","errors"} where errors maps
// field names to messages for validation failures (422). Missing or invalid
// tokens yield 401 with `WWW-Authenticate: Bearer`, insufficient roles 403,
// unknown ids 404 and failures of the AI collaborator 500 with the cause.
//
// List routes take `skip` and `limit` query parameters applied after filtering.
// Creates answer 201 and deletes 204.
package http
