package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskstream/taskstream/internal/auth"
	"github.com/taskstream/taskstream/internal/store"
	"github.com/taskstream/taskstream/internal/types"
)

// Gateway terminates client connections. It authenticates the
// handshake, registers the session, auto-joins the user's workspace
// rooms and private room, and is the only component that performs
// room-authorization checks against the external store.
type Gateway struct {
	log        *log.Logger
	auth       auth.Authenticator
	store      store.WorkspaceStore
	registry   *SessionRegistry
	rooms      *RoomDirectory
	dispatcher *Dispatcher
	presence   *PresenceTracker

	handshakeTimeout time.Duration
	heartbeatTimeout time.Duration
}

func NewGateway(
	logger *log.Logger,
	a auth.Authenticator,
	ws store.WorkspaceStore,
	registry *SessionRegistry,
	rooms *RoomDirectory,
	dispatcher *Dispatcher,
	presence *PresenceTracker,
	handshakeTimeout, heartbeatTimeout time.Duration,
) *Gateway {
	return &Gateway{
		log:              logger,
		auth:             a,
		store:            ws,
		registry:         registry,
		rooms:            rooms,
		dispatcher:       dispatcher,
		presence:         presence,
		handshakeTimeout: handshakeTimeout,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// Accept performs the authentication handshake and brings the session
// up. On success the session has joined its workspace rooms and its
// private room, received a presence snapshot, and its pumps are
// running. A rejected handshake gets an explicit denial before the
// connection is closed.
func (gw *Gateway) Accept(ctx context.Context, conn *websocket.Conn, token string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, gw.handshakeTimeout)
	defer cancel()

	user, err := gw.auth.ValidateCredential(ctx, token)
	if err != nil {
		gw.log.Printf("handshake rejected: %v", err)
		gw.refuse(conn, "authentication rejected")
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationRejected, err)
	}

	s, err := gw.registry.Register(user, conn, gw, gw.log)
	if err != nil {
		gw.refuse(conn, "registration failed")
		return nil, err
	}

	workspaces, err := gw.store.ListWorkspacesForUser(ctx, user.Id)
	if err != nil {
		gw.log.Printf("list workspaces for user %d: %v", user.Id, err)
		gw.registry.Deregister(s.id)
		gw.refuse(conn, "workspace lookup failed")
		return nil, fmt.Errorf("list workspaces: %w", err)
	}

	joinRooms := make([]string, 0, len(workspaces)+1)
	joinRooms = append(joinRooms, workspaces...)
	joinRooms = append(joinRooms, types.UserRoom(user.Id))
	for _, roomId := range joinRooms {
		if err := gw.rooms.Join(s, roomId); err != nil {
			gw.refuse(conn, "session closed")
			return nil, err
		}
	}

	s.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Connected: &Connected{
			SessionId: s.id,
			User:      user,
			Rooms:     gw.snapshot(s),
		},
	})
	s.setState(StateActive)

	gw.log.Printf("session %q established for user %q", s.id, user.Username)

	if conn != nil {
		go s.WritePump()
		go s.ReadPump()
	}

	return s, nil
}

// refuse sends an explicit denial so a rejected client never hangs.
func (gw *Gateway) refuse(conn *websocket.Conn, reason string) {
	if conn == nil {
		return
	}

	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	conn.Close()
}

// snapshot captures the online users of every room the session is in.
func (gw *Gateway) snapshot(s *Session) []RoomSnapshot {
	roomIds := gw.rooms.Rooms(s)
	slices.Sort(roomIds)

	snapshots := make([]RoomSnapshot, 0, len(roomIds))
	for _, roomId := range roomIds {
		snapshots = append(snapshots, RoomSnapshot{
			RoomId:      roomId,
			OnlineUsers: gw.presence.OnlineUsers(gw.rooms.MembersOf(roomId)),
		})
	}
	return snapshots
}

// RequestJoin performs an ad hoc, authorization-checked join. Private
// user rooms only admit their owner; workspace rooms require membership
// in the backing project.
func (gw *Gateway) RequestJoin(sessionId, roomId string) (*RoomSnapshot, error) {
	s, err := gw.registry.Get(sessionId)
	if err != nil {
		return nil, err
	}

	if types.IsUserRoom(roomId) {
		if roomId != types.UserRoom(s.user.Id) {
			return nil, ErrNotAuthorizedForRoom
		}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), gw.handshakeTimeout)
		defer cancel()

		ok, err := gw.store.IsMember(ctx, s.user.Id, roomId)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return nil, ErrNotAuthorizedForRoom
		}
	}

	if err := gw.rooms.Join(s, roomId); err != nil {
		return nil, err
	}

	return &RoomSnapshot{
		RoomId:      roomId,
		OnlineUsers: gw.presence.OnlineUsers(gw.rooms.MembersOf(roomId)),
	}, nil
}

// RequestLeave removes the session from a room. Idempotent; unknown
// sessions are a no-op.
func (gw *Gateway) RequestLeave(sessionId, roomId string) error {
	s, err := gw.registry.Get(sessionId)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	gw.rooms.Leave(s, roomId)
	return nil
}

// Typing relays an ephemeral typing indicator to the room, excluding
// the sender. Never persisted and exempt from the durable-commit
// ordering that domain events follow.
func (gw *Gateway) Typing(sessionId string, t *Typing) {
	s, err := gw.registry.Get(sessionId)
	if err != nil {
		return
	}

	if !gw.rooms.Contains(s, t.RoomId) {
		return
	}

	gw.dispatcher.Relay(t.RoomId, &Event{
		Kind:  EventTyping,
		Rooms: []string{t.RoomId},
		Typing: &TypingPayload{
			TaskId:   t.TaskId,
			IsTyping: t.IsTyping,
			User:     s.user,
		},
	}, s)
}

// Disconnect tears a session down through the shared cleanup path used
// by explicit disconnects, heartbeat eviction, and logout alike.
func (gw *Gateway) Disconnect(sessionId string) {
	rooms, err := gw.registry.Deregister(sessionId)
	if err != nil {
		return
	}

	gw.log.Printf("session %q disconnected, left %d rooms", sessionId, len(rooms))
}

type StatusReport struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
}

// Status reports live session and room counts for health checks.
func (gw *Gateway) Status() StatusReport {
	return StatusReport{
		Sessions: gw.registry.Count(),
		Rooms:    gw.rooms.Count(),
	}
}

// Shutdown disconnects every live session.
func (gw *Gateway) Shutdown(ctx context.Context) error {
	for _, s := range gw.registry.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		gw.Disconnect(s.id)
	}
	return nil
}

func joinError(id int, err error) *ServerMessage {
	if errors.Is(err, ErrNotAuthorizedForRoom) {
		return ErrUnauthorized(id)
	}
	return ErrInternalError(id)
}
