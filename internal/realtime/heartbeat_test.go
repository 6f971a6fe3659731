package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/taskstream/taskstream/internal/types"
)

func TestSweepEvictsStaleSessions(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	now := time.Now().UTC()
	tc.registry.nowFn = func() time.Time { return now }

	stale := tc.register(t, types.User{Id: 1, Username: "alice"})
	tc.rooms.Join(stale, "project_1")

	tc.registry.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	fresh := tc.register(t, types.User{Id: 2, Username: "bob"})
	tc.rooms.Join(fresh, "project_1")

	hm := NewHeartbeatMonitor(tc.gw.log, tc.gw, time.Minute, time.Minute)
	hm.sweep()

	assert.Equal(t, StateClosed, stale.State(), "expected stale session closed")
	assert.Equal(t, 1, tc.registry.Count(), "expected only the fresh session to remain")
	assert.ElementsMatch(t, []*Session{fresh}, tc.rooms.MembersOf("project_1"),
		"expected room membership to shrink")
}

func TestSweepRefreshedSessionSurvives(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	now := time.Now().UTC()
	tc.registry.nowFn = func() time.Time { return now }

	s := tc.register(t, types.User{Id: 1, Username: "alice"})

	tc.registry.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	tc.registry.Heartbeat(s.Id())

	hm := NewHeartbeatMonitor(tc.gw.log, tc.gw, time.Minute, time.Minute)
	hm.sweep()

	assert.Equal(t, 1, tc.registry.Count(), "expected refreshed session to survive")
}

// Evicting a user's last session must publish an offline transition to
// the rooms it was in.
func TestEvictionPublishesOffline(t *testing.T) {
	tc := newTestCore(t)

	observer := newObserver(t, tc, 99, "project_1")

	now := time.Now().UTC()
	tc.registry.nowFn = func() time.Time { return now }

	tc.store.On("ListWorkspacesForUser", mock.Anything, 1).Return([]string{"project_1"}, nil)
	stale := tc.register(t, types.User{Id: 1, Username: "alice"})
	tc.rooms.Join(stale, "project_1")
	awaitMessage(t, observer) // online event

	tc.registry.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	tc.registry.Heartbeat(observer.Id())

	hm := NewHeartbeatMonitor(tc.gw.log, tc.gw, time.Minute, time.Minute)
	hm.sweep()

	msg := awaitMessage(t, observer)
	assert.Equal(t, EventPresenceOffline, msg.Event.Kind, "expected offline event after eviction")
	assert.Equal(t, 1, msg.Event.Presence.User.Id, "expected evicted user in payload")
}

func TestHeartbeatMonitorRunStop(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	hm := NewHeartbeatMonitor(tc.gw.log, tc.gw, 10*time.Millisecond, time.Minute)
	go hm.Run()

	done := make(chan struct{})
	go func() {
		hm.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("timeout: heartbeat monitor did not stop")
	}
}
