package testfixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskplanner/internal/application"
)

func TestPayloadsValidate(t *testing.T) {
	cases := []struct {
		schema  *application.Schema
		payload map[string]any
	}{
		{application.TaskSchema, TaskPayload()},
		{application.CalendarSchema, EventPayload()},
		{application.ReminderSchema, ReminderPayload()},
		{application.KnowledgeSchema, KnowledgePayload()},
		{application.DocumentSchema, DocumentPayload()},
		{application.TaskTemplateSchema, TemplatePayload()},
	}
	for _, tc := range cases {
		t.Run(tc.schema.Entity, func(t *testing.T) {
			_, err := tc.schema.Validate(tc.payload, application.ModeCreate)
			require.NoError(t, err)
		})
	}
}

func TestPayloadOptions(t *testing.T) {
	payload := TaskPayload(With("priority", "high"), Without("description"))
	assert.Equal(t, "high", payload["priority"])
	assert.NotContains(t, payload, "description")
	assert.NotEqual(t, TaskPayload()["title"], TaskPayload()["title"])
}

func TestServiceFactoryBuild(t *testing.T) {
	clock := NewClock(ReferenceTime())
	svc := NewServiceFactory(WithClock(clock)).Build(t, NewSQLiteStore(t, clock))

	n, err := svc.Access.EnsureAccessCodes(context.Background(), AccessCodeSeeds())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	result, err := svc.Access.Login(context.Background(), application.LoginParams{Secret: AdminCode})
	require.NoError(t, err)
	assert.Equal(t, Admin.Label, result.Principal.Label)
	assert.Equal(t, application.RoleAdmin, result.Principal.Role)

	task, err := svc.Records.Create(context.Background(), Member, application.EntityTasks, TaskPayload())
	require.NoError(t, err)
	assert.Equal(t, application.FormatDatetime(clock.Now()), task["created_at"])
}
