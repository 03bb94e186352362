package testfixtures

import (
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/example/taskplanner/internal/application"
)

var payloadCounter uint64

// Member and admin principals matching AccessCodeSeeds.
var (
	Member = application.Principal{Label: "SAM (9127SAM)", Role: application.RoleMember}
	Admin  = application.Principal{Label: "RFB - Admin (9566RFB)", Role: application.RoleAdmin}
)

// Secrets for the codes in AccessCodeSeeds.
const (
	MemberCode = "9127SAM"
	AdminCode  = "9566RFB"
)

// AccessCodeSeeds returns one member and one admin code.
func AccessCodeSeeds() []application.AccessCodeSeed {
	return []application.AccessCodeSeed{
		{Label: Member.Label, Code: MemberCode, Role: string(application.RoleMember)},
		{Label: Admin.Label, Code: AdminCode, Role: string(application.RoleAdmin)},
	}
}

// PayloadOption adjusts a generated payload.
type PayloadOption func(map[string]any)

// With sets field to value.
func With(field string, value any) PayloadOption {
	return func(p map[string]any) {
		p[field] = value
	}
}

// Without removes field.
func Without(field string) PayloadOption {
	return func(p map[string]any) {
		delete(p, field)
	}
}

func build(base map[string]any, opts []PayloadOption) map[string]any {
	payload := maps.Clone(base)
	for _, opt := range opts {
		opt(payload)
	}
	return payload
}

func next() uint64 {
	return atomic.AddUint64(&payloadCounter, 1)
}

// TaskPayload returns a valid task create body.
func TaskPayload(opts ...PayloadOption) map[string]any {
	idx := next()
	return build(map[string]any{
		"title":                    fmt.Sprintf("Task %03d", idx),
		"description":              "Generated task",
		"time_to_complete_minutes": 30,
	}, opts)
}

// EventPayload returns a valid calendar event create body.
func EventPayload(opts ...PayloadOption) map[string]any {
	idx := next()
	return build(map[string]any{
		"title":      fmt.Sprintf("Event %03d", idx),
		"start_time": "2024-03-05T10:00:00Z",
		"end_time":   "2024-03-05T11:00:00Z",
	}, opts)
}

// ReminderPayload returns a valid reminder create body due a day after
// ReferenceTime.
func ReminderPayload(opts ...PayloadOption) map[string]any {
	idx := next()
	return build(map[string]any{
		"title":     fmt.Sprintf("Reminder %03d", idx),
		"remind_at": application.FormatDatetime(referenceTime.AddDate(0, 0, 1)),
	}, opts)
}

// KnowledgePayload returns a valid knowledge entry create body.
func KnowledgePayload(opts ...PayloadOption) map[string]any {
	idx := next()
	return build(map[string]any{
		"title":    fmt.Sprintf("Note %03d", idx),
		"content":  "Generated knowledge content",
		"category": "general",
	}, opts)
}

// DocumentPayload returns a valid document create body.
func DocumentPayload(opts ...PayloadOption) map[string]any {
	idx := next()
	return build(map[string]any{
		"title":     fmt.Sprintf("Document %03d", idx),
		"file_type": "pdf",
	}, opts)
}

// TemplatePayload returns a valid task template create body.
func TemplatePayload(opts ...PayloadOption) map[string]any {
	idx := next()
	return build(map[string]any{
		"title":                    fmt.Sprintf("Template %03d", idx),
		"priority":                 "medium",
		"time_to_complete_minutes": 15,
		"category":                 "chores",
	}, opts)
}
