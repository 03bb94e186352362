package application

import (
	"github.com/example/taskplanner/internal/persistence"
)

// Entity collection names.
const (
	EntityTasks         = "tasks"
	EntityCalendar      = "calendar"
	EntityReminders     = "reminders"
	EntityKnowledge     = "knowledge"
	EntityDocuments     = "documents"
	EntityChatHistory   = "chat_history"
	EntityAccessCodes   = "access_codes"
	EntityLoginAttempts = "login_attempts"
	EntityFeedback      = "feedback"
	EntityTeam          = "team"
	EntityTaskTemplates = "task_templates"
)

// Task states.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

var (
	taskStatuses   = []string{TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled}
	taskPriorities = []string{"low", "medium", "high", "urgent"}
	chatRoles      = []string{"user", "assistant"}
	accessRoles    = []string{string(RoleMember), string(RoleAdmin)}
)

// TaskSchema validates tasks.
var TaskSchema = &Schema{
	Entity: EntityTasks,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "description", Kind: KindText},
		{Name: "status", Kind: KindEnum, Enum: taskStatuses, Default: TaskStatusTodo},
		{Name: "priority", Kind: KindEnum, Enum: taskPriorities, Default: "medium"},
		{Name: "due_date", Kind: KindDatetime},
		{Name: "assignee", Kind: KindString},
		{Name: "time_to_complete_minutes", Kind: KindInt, Required: true, Min: 1, HasMin: true},
		{Name: "completed_at", Kind: KindDatetime},
		{Name: "is_archived", Kind: KindBool, Default: false},
	},
}

// CalendarSchema validates calendar events.
var CalendarSchema = &Schema{
	Entity: EntityCalendar,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "description", Kind: KindText},
		{Name: "start_time", Kind: KindDatetime, Required: true},
		{Name: "end_time", Kind: KindDatetime, Required: true},
		{Name: "location", Kind: KindString},
		{Name: "all_day", Kind: KindBool, Default: false},
	},
	Check: checkEventWindow,
}

// ReminderSchema validates reminders.
var ReminderSchema = &Schema{
	Entity: EntityReminders,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "description", Kind: KindText},
		{Name: "remind_at", Kind: KindDatetime, Required: true},
		{Name: "is_active", Kind: KindBool, Default: true},
		{Name: "is_completed", Kind: KindBool, Default: false},
	},
}

// KnowledgeSchema validates knowledge base entries.
var KnowledgeSchema = &Schema{
	Entity: EntityKnowledge,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "content", Kind: KindText, Required: true},
		{Name: "category", Kind: KindString},
		{Name: "tags", Kind: KindTags},
	},
}

// DocumentSchema validates document references.
var DocumentSchema = &Schema{
	Entity: EntityDocuments,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "file_path", Kind: KindString},
		{Name: "file_type", Kind: KindString},
		{Name: "description", Kind: KindText},
		{Name: "url", Kind: KindString},
		{Name: "tags", Kind: KindTags},
	},
}

// ChatMessageSchema validates stored chat turns.
var ChatMessageSchema = &Schema{
	Entity: EntityChatHistory,
	Fields: []Field{
		{Name: "role", Kind: KindEnum, Required: true, Enum: chatRoles},
		{Name: "content", Kind: KindText, Required: true},
	},
}

// AccessCodeSchema validates access code records.
var AccessCodeSchema = &Schema{
	Entity: EntityAccessCodes,
	Fields: []Field{
		{Name: "label", Kind: KindString, Required: true},
		{Name: "code_hash", Kind: KindString, Required: true},
		{Name: "role", Kind: KindEnum, Required: true, Enum: accessRoles},
		{Name: "is_active", Kind: KindBool, Default: true},
	},
}

// LoginAttemptSchema validates the login audit trail.
var LoginAttemptSchema = &Schema{
	Entity: EntityLoginAttempts,
	Fields: []Field{
		{Name: "submitted_code", Kind: KindString, Required: true},
		{Name: "success", Kind: KindBool, Required: true},
		{Name: "code_label", Kind: KindString},
		{Name: "code_role", Kind: KindEnum, Enum: accessRoles},
		{Name: "failure_reason", Kind: KindString},
		{Name: "client_ip", Kind: KindString},
	},
}

// FeedbackSchema validates feedback submissions.
var FeedbackSchema = &Schema{
	Entity: EntityFeedback,
	Fields: []Field{
		{Name: "name", Kind: KindString, MaxLen: 120},
		{Name: "email", Kind: KindEmail},
		{Name: "category", Kind: KindString, Required: true, MinLen: 3, MaxLen: 50},
		{Name: "message", Kind: KindText, Required: true, MinLen: 10, MaxLen: 1000},
	},
}

// TeamMemberSchema accepts any object.
var TeamMemberSchema = &Schema{
	Entity:   EntityTeam,
	Freeform: true,
}

// TaskTemplateSchema validates task templates.
var TaskTemplateSchema = &Schema{
	Entity: EntityTaskTemplates,
	Fields: []Field{
		{Name: "title", Kind: KindString, Required: true},
		{Name: "description", Kind: KindText},
		{Name: "priority", Kind: KindEnum, Required: true, Enum: taskPriorities},
		{Name: "time_to_complete_minutes", Kind: KindInt, Required: true, Min: 1, HasMin: true},
		{Name: "category", Kind: KindString, Required: true},
	},
}

func checkEventWindow(rec persistence.Record, v *ValidationError) {
	start, errStart := ParseDatetime(rec.String("start_time"))
	end, errEnd := ParseDatetime(rec.String("end_time"))
	if errStart != nil || errEnd != nil {
		return
	}
	if end.Before(start) {
		v.add("end_time", "must not be before start_time")
	}
}
