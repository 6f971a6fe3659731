package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskstream/taskstream/internal/types"
)

func TestEventValidate(t *testing.T) {
	actor := types.User{Id: 1, Username: "alice"}

	tt := []struct {
		name   string
		event  *Event
		errMsg string
	}{
		{
			name: "valid task event",
			event: &Event{
				Kind:  EventTaskCreated,
				Rooms: []string{"project_1"},
				Task:  &TaskPayload{TaskId: 1, ProjectId: 1, Title: "write tests", Actor: actor},
			},
		},
		{
			name: "valid user-targeted notification",
			event: &Event{
				Kind:         EventNotification,
				TargetUserId: 2,
				Notification: &NotificationPayload{Type: "task_assigned", Message: "you were assigned a task"},
			},
		},
		{
			name: "valid presence event",
			event: &Event{
				Kind:     EventPresenceOnline,
				Rooms:    []string{"project_1"},
				Presence: &PresencePayload{User: actor, Online: true},
			},
		},
		{
			name: "no target",
			event: &Event{
				Kind: EventTaskCreated,
				Task: &TaskPayload{TaskId: 1, ProjectId: 1, Title: "write tests", Actor: actor},
			},
			errMsg: "has no target",
		},
		{
			name: "missing payload",
			event: &Event{
				Kind:  EventCommentAdded,
				Rooms: []string{"project_1"},
			},
			errMsg: "missing its payload",
		},
		{
			name: "payload does not match kind",
			event: &Event{
				Kind:    EventTaskUpdated,
				Rooms:   []string{"project_1"},
				Comment: &CommentPayload{CommentId: 1, TaskId: 1, ProjectId: 1, Text: "hi", Author: actor},
			},
			errMsg: "missing its payload",
		},
		{
			name: "multiple payloads",
			event: &Event{
				Kind:    EventTaskUpdated,
				Rooms:   []string{"project_1"},
				Task:    &TaskPayload{TaskId: 1, ProjectId: 1, Title: "write tests", Actor: actor},
				Comment: &CommentPayload{CommentId: 1, TaskId: 1, ProjectId: 1, Text: "hi", Author: actor},
			},
			errMsg: "payloads, want exactly one",
		},
		{
			name: "unknown kind",
			event: &Event{
				Kind:  EventKind("task_exploded"),
				Rooms: []string{"project_1"},
				Task:  &TaskPayload{TaskId: 1, ProjectId: 1, Title: "write tests", Actor: actor},
			},
			errMsg: "unknown event kind",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err, "expected event to validate")
			} else {
				assert.ErrorContains(t, err, tc.errMsg, "expected validation failure")
			}
		})
	}
}
