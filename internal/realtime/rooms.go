package realtime

import (
	"log"
	"sync"

	"github.com/taskstream/taskstream/internal/stats"
)

// RoomDirectory owns the session-to-room membership relation. Both
// sides of the relation (a room's member set and a session's joined
// set) are updated under one lock, so they can never disagree.
//
// Rooms are created lazily on first join and dropped once empty.
// Private user rooms are purely logical; an offline user's room simply
// has no members and therefore no entry here.
type RoomDirectory struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu    sync.RWMutex
	rooms map[string]map[string]*Session
}

func NewRoomDirectory(logger *log.Logger, sp stats.StatsProvider) *RoomDirectory {
	sp.RegisterMetric(stats.NumRooms)

	return &RoomDirectory{
		log:   logger,
		stats: sp,
		rooms: make(map[string]map[string]*Session),
	}
}

// Join adds the session to the room. Idempotent. Authorization is the
// caller's responsibility; the directory trusts the gateway. A session
// that is already draining or closed cannot join: without this check a
// join blocked in an authorization round-trip could re-add a session
// after deregistration has emptied its membership.
func (rd *RoomDirectory) Join(s *Session, roomId string) error {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if s.State() >= StateDraining {
		return ErrSessionNotFound
	}

	members, ok := rd.rooms[roomId]
	if !ok {
		members = make(map[string]*Session)
		rd.rooms[roomId] = members
		rd.stats.Incr(stats.NumRooms)
	}

	if _, ok := members[s.id]; ok {
		return nil
	}

	members[s.id] = s
	s.rooms[roomId] = struct{}{}
	return nil
}

// Leave removes the session from the room. Idempotent. Empty rooms are
// garbage-collected.
func (rd *RoomDirectory) Leave(s *Session, roomId string) {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	rd.leaveLocked(s, roomId)
}

func (rd *RoomDirectory) leaveLocked(s *Session, roomId string) {
	members, ok := rd.rooms[roomId]
	if !ok {
		return
	}

	if _, ok := members[s.id]; !ok {
		return
	}

	delete(members, s.id)
	delete(s.rooms, roomId)

	if len(members) == 0 {
		delete(rd.rooms, roomId)
		rd.stats.Decr(stats.NumRooms)
	}
}

// LeaveAll removes the session from every room it is in and returns
// the rooms it was a member of.
func (rd *RoomDirectory) LeaveAll(s *Session) []string {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	rooms := make([]string, 0, len(s.rooms))
	for roomId := range s.rooms {
		rooms = append(rooms, roomId)
	}

	for _, roomId := range rooms {
		rd.leaveLocked(s, roomId)
	}

	return rooms
}

// MembersOf returns a consistent snapshot of the room's member
// sessions. An unknown room yields an empty slice.
func (rd *RoomDirectory) MembersOf(roomId string) []*Session {
	rd.mu.RLock()
	defer rd.mu.RUnlock()

	members := make([]*Session, 0, len(rd.rooms[roomId]))
	for _, s := range rd.rooms[roomId] {
		members = append(members, s)
	}
	return members
}

// Contains reports whether the session is currently a member of the
// room.
func (rd *RoomDirectory) Contains(s *Session, roomId string) bool {
	rd.mu.RLock()
	defer rd.mu.RUnlock()

	_, ok := rd.rooms[roomId][s.id]
	return ok
}

// Rooms returns the room ids the session is joined to.
func (rd *RoomDirectory) Rooms(s *Session) []string {
	rd.mu.RLock()
	defer rd.mu.RUnlock()

	rooms := make([]string, 0, len(s.rooms))
	for roomId := range s.rooms {
		rooms = append(rooms, roomId)
	}
	return rooms
}

// Count returns the number of rooms with at least one member.
func (rd *RoomDirectory) Count() int {
	rd.mu.RLock()
	defer rd.mu.RUnlock()
	return len(rd.rooms)
}
