package realtime

import (
	"fmt"
	"time"

	"github.com/taskstream/taskstream/internal/types"
)

type EventKind string

const (
	EventTaskCreated       EventKind = "task_created"
	EventTaskUpdated       EventKind = "task_updated"
	EventTaskStatusChanged EventKind = "task_status_changed"
	EventTaskDeleted       EventKind = "task_deleted"
	EventCommentAdded      EventKind = "comment_added"
	EventProjectUpdated    EventKind = "project_updated"
	EventTyping            EventKind = "user_typing"
	EventPresenceOnline    EventKind = "user_connected"
	EventPresenceOffline   EventKind = "user_disconnected"
	EventNotification      EventKind = "notification"
)

// Event is an immutable fact produced by the mutation pipeline or the
// presence tracker. Exactly one payload field is set, matching Kind.
// Rooms and TargetUserId route the event; Seq is scoped to the room the
// event is delivered on and exists for client-side gap detection only.
type Event struct {
	Kind      EventKind `json:"kind"`
	Seq       int64     `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Rooms        []string `json:"-"`
	TargetUserId int      `json:"-"`

	Task         *TaskPayload         `json:"task,omitempty"`
	Comment      *CommentPayload      `json:"comment,omitempty"`
	Project      *ProjectPayload      `json:"project,omitempty"`
	Typing       *TypingPayload       `json:"typing,omitempty"`
	Presence     *PresencePayload     `json:"presence,omitempty"`
	Notification *NotificationPayload `json:"notification,omitempty"`
}

type TaskPayload struct {
	TaskId     int        `json:"task_id"`
	ProjectId  int        `json:"project_id"`
	Title      string     `json:"title"`
	Status     string     `json:"status,omitempty"`
	OldStatus  string     `json:"old_status,omitempty"`
	Priority   string     `json:"priority,omitempty"`
	AssignedTo int        `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Actor      types.User `json:"actor"`
}

type CommentPayload struct {
	CommentId int        `json:"comment_id"`
	TaskId    int        `json:"task_id"`
	ProjectId int        `json:"project_id"`
	Text      string     `json:"text"`
	Author    types.User `json:"author"`
}

type ProjectPayload struct {
	ProjectId int            `json:"project_id"`
	Name      string         `json:"name"`
	Changes   map[string]any `json:"changes,omitempty"`
	Actor     types.User     `json:"actor"`
}

type TypingPayload struct {
	TaskId   int        `json:"task_id"`
	IsTyping bool       `json:"is_typing"`
	User     types.User `json:"user"`
}

type PresencePayload struct {
	User   types.User `json:"user"`
	Online bool       `json:"online"`
}

type NotificationPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	TaskId  int    `json:"task_id,omitempty"`
}

// Validate checks the event carries exactly the payload its kind
// requires and resolves to at least one delivery target.
func (e *Event) Validate() error {
	if len(e.Rooms) == 0 && e.TargetUserId == 0 {
		return fmt.Errorf("event %q has no target", e.Kind)
	}

	var payload any
	switch e.Kind {
	case EventTaskCreated, EventTaskUpdated, EventTaskStatusChanged, EventTaskDeleted:
		payload = e.Task
	case EventCommentAdded:
		payload = e.Comment
	case EventProjectUpdated:
		payload = e.Project
	case EventTyping:
		payload = e.Typing
	case EventPresenceOnline, EventPresenceOffline:
		payload = e.Presence
	case EventNotification:
		payload = e.Notification
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}

	if payload == nil || isNilPtr(payload) {
		return fmt.Errorf("event %q is missing its payload", e.Kind)
	}

	if n := e.payloadCount(); n != 1 {
		return fmt.Errorf("event %q has %d payloads, want exactly one", e.Kind, n)
	}

	return nil
}

func (e *Event) payloadCount() int {
	var n int
	for _, p := range []bool{
		e.Task != nil,
		e.Comment != nil,
		e.Project != nil,
		e.Typing != nil,
		e.Presence != nil,
		e.Notification != nil,
	} {
		if p {
			n++
		}
	}
	return n
}

func isNilPtr(v any) bool {
	switch p := v.(type) {
	case *TaskPayload:
		return p == nil
	case *CommentPayload:
		return p == nil
	case *ProjectPayload:
		return p == nil
	case *TypingPayload:
		return p == nil
	case *PresencePayload:
		return p == nil
	case *NotificationPayload:
		return p == nil
	}
	return false
}
