package realtime

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskstream/taskstream/internal/stats"
	"github.com/taskstream/taskstream/internal/types"
	"github.com/teris-io/shortid"
)

// PresenceListener is notified on every registry mutation that changes
// a user's live-session count.
type PresenceListener interface {
	SessionOpened(user types.User)
	SessionClosed(user types.User)
}

// SessionRegistry owns the set of live sessions. All mutation of the
// session set goes through its methods; nothing else may touch the
// internal maps.
type SessionRegistry struct {
	log      *log.Logger
	stats    stats.StatsProvider
	rooms    *RoomDirectory
	sid      *shortid.Shortid
	presence PresenceListener
	nowFn    func() time.Time

	queueSize int

	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[int]map[string]*Session
}

func NewSessionRegistry(logger *log.Logger, sp stats.StatsProvider, rooms *RoomDirectory, queueSize int) (*SessionRegistry, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("new shortid generator: %w", err)
	}

	if queueSize <= 0 {
		queueSize = 256
	}

	sp.RegisterMetric(stats.NumSessions)

	return &SessionRegistry{
		log:       logger,
		stats:     sp,
		rooms:     rooms,
		sid:       sid,
		nowFn:     func() time.Time { return time.Now().UTC() },
		queueSize: queueSize,
		sessions:  make(map[string]*Session),
		byUser:    make(map[int]map[string]*Session),
	}, nil
}

// SetPresenceListener wires the presence tracker. Must be called before
// the first Register.
func (sr *SessionRegistry) SetPresenceListener(l PresenceListener) {
	sr.presence = l
}

// Register creates a session for an already-authenticated user. The
// conn may be nil in tests; pumps are only started by the gateway.
func (sr *SessionRegistry) Register(user types.User, conn *websocket.Conn, gw *Gateway, logger *log.Logger) (*Session, error) {
	if user.Id <= 0 {
		return nil, ErrAuthenticationRejected
	}

	id, err := sr.sid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	s := &Session{
		id:    id,
		user:  user,
		conn:  conn,
		gw:    gw,
		log:   logger,
		send:  make(chan *ServerMessage, sr.queueSize),
		stop:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
	s.setState(StateAuthenticated)
	s.touchHeartbeat(sr.nowFn())

	sr.mu.Lock()
	sr.sessions[id] = s
	if sr.byUser[user.Id] == nil {
		sr.byUser[user.Id] = make(map[string]*Session)
	}
	sr.byUser[user.Id][id] = s
	sr.mu.Unlock()

	sr.stats.Incr(stats.NumSessions)
	if sr.presence != nil {
		sr.presence.SessionOpened(user)
	}

	return s, nil
}

// Get returns the session for an id, or ErrSessionNotFound.
func (sr *SessionRegistry) Get(sessionId string) (*Session, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	s, ok := sr.sessions[sessionId]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Heartbeat refreshes the session's last-heartbeat timestamp. Unknown
// session ids are a no-op.
func (sr *SessionRegistry) Heartbeat(sessionId string) {
	sr.mu.RLock()
	s, ok := sr.sessions[sessionId]
	sr.mu.RUnlock()

	if ok {
		s.touchHeartbeat(sr.nowFn())
	}
}

// JoinedRooms returns the room ids the session is currently joined to.
func (sr *SessionRegistry) JoinedRooms(sessionId string) []string {
	sr.mu.RLock()
	s, ok := sr.sessions[sessionId]
	sr.mu.RUnlock()

	if !ok {
		return nil
	}
	return sr.rooms.Rooms(s)
}

// Deregister removes the session and all of its room memberships,
// returning the rooms it was in. Safe to call more than once.
func (sr *SessionRegistry) Deregister(sessionId string) ([]string, error) {
	sr.mu.Lock()
	s, ok := sr.sessions[sessionId]
	if !ok {
		sr.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	delete(sr.sessions, sessionId)
	if userSessions, ok := sr.byUser[s.user.Id]; ok {
		delete(userSessions, sessionId)
		if len(userSessions) == 0 {
			delete(sr.byUser, s.user.Id)
		}
	}
	sr.mu.Unlock()

	s.setState(StateDraining)
	rooms := sr.rooms.LeaveAll(s)
	s.stopSession()
	s.setState(StateClosed)

	sr.stats.Decr(stats.NumSessions)
	if sr.presence != nil {
		sr.presence.SessionClosed(s.user)
	}

	return rooms, nil
}

// SessionsForUser returns a snapshot of all live sessions for a user.
func (sr *SessionRegistry) SessionsForUser(userId int) []*Session {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	sessions := make([]*Session, 0, len(sr.byUser[userId]))
	for _, s := range sr.byUser[userId] {
		sessions = append(sessions, s)
	}
	return sessions
}

// Stale returns every session whose last heartbeat is older than the
// timeout.
func (sr *SessionRegistry) Stale(timeout time.Duration) []*Session {
	cutoff := sr.nowFn().Add(-timeout)

	sr.mu.RLock()
	defer sr.mu.RUnlock()

	var stale []*Session
	for _, s := range sr.sessions {
		if s.LastHeartbeat().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	return stale
}

// All returns a snapshot of every live session.
func (sr *SessionRegistry) All() []*Session {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	sessions := make([]*Session, 0, len(sr.sessions))
	for _, s := range sr.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count returns the number of live sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}
