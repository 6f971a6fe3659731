package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskstream/taskstream/internal/types"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1024
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateDraining
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one authenticated, live connection. A user with two tabs
// open has two independent sessions.
type Session struct {
	id    string
	user  types.User
	conn  *websocket.Conn
	gw    *Gateway
	log   *log.Logger
	send  chan *ServerMessage
	stop  chan struct{}
	state atomic.Int32

	stopOnce sync.Once

	hbMu          sync.Mutex
	lastHeartbeat time.Time

	// joined room ids; owned by the RoomDirectory, which is the only
	// component allowed to touch this set (under its own lock).
	rooms map[string]struct{}

	dropped atomic.Int64
}

func (s *Session) Id() string       { return s.id }
func (s *Session) User() types.User { return s.user }

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

func (s *Session) LastHeartbeat() time.Time {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	return s.lastHeartbeat
}

func (s *Session) touchHeartbeat(now time.Time) {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	s.lastHeartbeat = now
}

// Dropped returns the number of outbound messages discarded because the
// send queue was full.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// queueMessage enqueues an outbound message without blocking. On a full
// queue the message is discarded for this session only.
func (s *Session) queueMessage(msg *ServerMessage) bool {
	if s.State() >= StateDraining {
		return false
	}

	select {
	case s.send <- msg:
		return true
	default:
		s.dropped.Add(1)
		s.log.Printf("send queue full for session %q, dropping message", s.id)
		return false
	}
}

func (s *Session) stopSession() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Session) WritePump() {
	pingInterval := (s.gw.heartbeatTimeout * 9) / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Printf("write pump exiting for session %q", s.id)
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				s.log.Println("failed to serialize message:", err)
				continue
			}

			if !s.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) ReadPump() {
	defer func() {
		s.conn.Close()
		s.gw.Disconnect(s.id)
		s.log.Printf("read pump exiting for session %q", s.id)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.gw.heartbeatTimeout))
	s.conn.SetPongHandler(func(appData string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.gw.heartbeatTimeout))
		s.gw.registry.Heartbeat(s.id)
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Println("error parsing message:", err)
			s.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		s.handleMessage(&msg)
	}
}

func (s *Session) handleMessage(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		snapshot, err := s.gw.RequestJoin(s.id, msg.Join.RoomId)
		if err != nil {
			s.queueMessage(joinError(msg.Id, err))
			return
		}
		s.queueMessage(NoErrOK(msg.Id, snapshot))
	case msg.Leave != nil:
		if err := s.gw.RequestLeave(s.id, msg.Leave.RoomId); err != nil {
			s.queueMessage(ErrInternalError(msg.Id))
			return
		}
		s.queueMessage(NoErrOK(msg.Id, nil))
	case msg.Typing != nil:
		s.gw.Typing(s.id, msg.Typing)
	case msg.Heartbeat != nil:
		s.gw.registry.Heartbeat(s.id)
		s.queueMessage(NoErrOK(msg.Id, map[string]any{"pong": Now()}))
	default:
		s.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (s *Session) writeMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}
