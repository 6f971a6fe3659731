package realtime

import (
	"net/http"
	"time"

	"github.com/taskstream/taskstream/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound protocol: exactly one request field set.
type ClientMessage struct {
	BaseMessage
	Join      *Join      `json:"join,omitempty"`
	Leave     *Leave     `json:"leave,omitempty"`
	Typing    *Typing    `json:"typing,omitempty"`
	Heartbeat *Heartbeat `json:"heartbeat,omitempty"`
}

type Join struct {
	RoomId string `json:"room_id"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

type Typing struct {
	RoomId   string `json:"room_id"`
	TaskId   int    `json:"task_id"`
	IsTyping bool   `json:"is_typing"`
}

type Heartbeat struct{}

// ServerMessage is the outbound protocol. Room is set on event
// deliveries so a client can track per-room sequence numbers.
type ServerMessage struct {
	BaseMessage
	Response  *Response  `json:"response,omitempty"`
	Connected *Connected `json:"connected,omitempty"`
	Room      string     `json:"room,omitempty"`
	Event     *Event     `json:"event,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// Connected acknowledges a successful handshake and carries the initial
// presence snapshot so the client can render state without racing
// subsequent events.
type Connected struct {
	SessionId string         `json:"session_id"`
	User      types.User     `json:"user"`
	Rooms     []RoomSnapshot `json:"rooms"`
}

type RoomSnapshot struct {
	RoomId      string       `json:"room_id"`
	OnlineUsers []types.User `json:"online_users"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrUnauthorized(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not authorized for room",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
