package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/taskstream/taskstream/internal/store"
	"github.com/taskstream/taskstream/internal/types"
)

// PresenceTracker derives per-user online state from live-session
// counts. A user comes online when their first session registers and
// goes offline only after every session has been gone for the grace
// window, so brief reconnect gaps don't flap.
//
// Transition events reach every workspace the user belongs to,
// enumerated from the external store at transition time rather than
// from currently-joined rooms, so a fresh connection notifies all
// relevant workspaces before room auto-join completes.
type PresenceTracker struct {
	log        *log.Logger
	store      store.WorkspaceStore
	dispatcher *Dispatcher
	grace      time.Duration

	mu      sync.Mutex
	counts  map[int]int
	online  map[int]types.User
	pending map[int]*time.Timer
}

func NewPresenceTracker(logger *log.Logger, ws store.WorkspaceStore, d *Dispatcher, grace time.Duration) *PresenceTracker {
	return &PresenceTracker{
		log:        logger,
		store:      ws,
		dispatcher: d,
		grace:      grace,
		counts:     make(map[int]int),
		online:     make(map[int]types.User),
		pending:    make(map[int]*time.Timer),
	}
}

// SessionOpened records a new live session for the user. The first
// session triggers an online broadcast; a reconnect inside the offline
// grace window cancels the pending offline without re-announcing.
func (pt *PresenceTracker) SessionOpened(user types.User) {
	pt.mu.Lock()
	pt.counts[user.Id]++

	if timer, ok := pt.pending[user.Id]; ok {
		timer.Stop()
		delete(pt.pending, user.Id)
	}

	_, wasOnline := pt.online[user.Id]
	pt.online[user.Id] = user
	pt.mu.Unlock()

	if !wasOnline {
		pt.broadcastTransition(user, true)
	}
}

// SessionClosed records the loss of one of the user's sessions. When
// the last session is gone, an offline broadcast follows after the
// grace window, unless the user reconnects first.
func (pt *PresenceTracker) SessionClosed(user types.User) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.counts[user.Id] == 0 {
		return
	}

	pt.counts[user.Id]--
	if pt.counts[user.Id] > 0 {
		return
	}
	delete(pt.counts, user.Id)

	if timer, ok := pt.pending[user.Id]; ok {
		timer.Stop()
	}
	pt.pending[user.Id] = time.AfterFunc(pt.grace, func() {
		pt.confirmOffline(user)
	})
}

func (pt *PresenceTracker) confirmOffline(user types.User) {
	pt.mu.Lock()
	delete(pt.pending, user.Id)
	if pt.counts[user.Id] > 0 {
		// reconnected during the grace window
		pt.mu.Unlock()
		return
	}
	delete(pt.online, user.Id)
	pt.mu.Unlock()

	pt.broadcastTransition(user, false)
}

func (pt *PresenceTracker) broadcastTransition(user types.User, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rooms, err := pt.store.ListWorkspacesForUser(ctx, user.Id)
	if err != nil {
		pt.log.Printf("list workspaces for user %d: %v", user.Id, err)
		return
	}
	if len(rooms) == 0 {
		return
	}

	kind := EventPresenceOnline
	if !online {
		kind = EventPresenceOffline
	}

	if err := pt.dispatcher.Publish(&Event{
		Kind:     kind,
		Rooms:    rooms,
		Presence: &PresencePayload{User: user, Online: online},
	}); err != nil {
		pt.log.Printf("publish presence transition for user %d: %v", user.Id, err)
	}
}

// Online reports whether the user currently counts as online. A user
// inside the offline grace window is still online.
func (pt *PresenceTracker) Online(userId int) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	_, ok := pt.online[userId]
	return ok
}

// OnlineUsers filters the given sessions down to distinct online users.
func (pt *PresenceTracker) OnlineUsers(sessions []*Session) []types.User {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	seen := make(map[int]struct{}, len(sessions))
	users := make([]types.User, 0, len(sessions))
	for _, s := range sessions {
		if _, ok := seen[s.user.Id]; ok {
			continue
		}
		if _, ok := pt.online[s.user.Id]; !ok {
			continue
		}
		seen[s.user.Id] = struct{}{}
		users = append(users, s.user)
	}
	return users
}
