package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskstream/taskstream/internal/types"
)

func TestJoinLeave(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	s := tc.register(t, types.User{Id: 1, Username: "alice"})

	tc.rooms.Join(s, "project_1")
	assert.True(t, tc.rooms.Contains(s, "project_1"), "expected membership after join")
	assert.ElementsMatch(t, []string{"project_1"}, tc.rooms.Rooms(s), "expected joined set updated")
	assert.Equal(t, 1, tc.rooms.Count(), "expected one room")

	tc.rooms.Leave(s, "project_1")
	assert.False(t, tc.rooms.Contains(s, "project_1"), "expected membership removed")
	assert.Empty(t, tc.rooms.Rooms(s), "expected joined set emptied")
	assert.Equal(t, 0, tc.rooms.Count(), "expected empty room garbage-collected")
}

func TestJoinIdempotent(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	s := tc.register(t, types.User{Id: 1, Username: "alice"})

	tc.rooms.Join(s, "project_1")
	tc.rooms.Join(s, "project_1")

	assert.Len(t, tc.rooms.MembersOf("project_1"), 1, "expected no duplicate membership")
	assert.Len(t, tc.rooms.Rooms(s), 1, "expected no duplicate joined entry")
}

func TestLeaveIdempotent(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	s := tc.register(t, types.User{Id: 1, Username: "alice"})

	// leaving a room never joined is a no-op
	tc.rooms.Leave(s, "project_1")
	assert.Equal(t, 0, tc.rooms.Count(), "expected no room created by leave")

	tc.rooms.Join(s, "project_1")
	tc.rooms.Leave(s, "project_1")
	tc.rooms.Leave(s, "project_1")
	assert.Equal(t, 0, tc.rooms.Count(), "expected room gone after double leave")
}

func TestMembersOfSnapshot(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	s1 := tc.register(t, types.User{Id: 1, Username: "alice"})
	s2 := tc.register(t, types.User{Id: 2, Username: "bob"})
	tc.rooms.Join(s1, "project_1")
	tc.rooms.Join(s2, "project_1")

	members := tc.rooms.MembersOf("project_1")
	assert.ElementsMatch(t, []*Session{s1, s2}, members, "expected both members")

	// mutating afterwards must not affect the returned snapshot
	tc.rooms.Leave(s1, "project_1")
	assert.Len(t, members, 2, "expected snapshot unaffected by later leave")

	assert.Empty(t, tc.rooms.MembersOf("no-such-room"), "expected empty slice for unknown room")
}

// Membership must stay bidirectionally consistent under concurrent
// join, leave, and deregister.
func TestMembershipConsistencyUnderConcurrency(t *testing.T) {
	tc := newTestCore(t)
	tc.expectNoWorkspaces()

	const (
		numSessions = 16
		numRooms    = 4
		iterations  = 50
	)

	sessions := make([]*Session, numSessions)
	for i := range sessions {
		sessions[i] = tc.register(t, types.User{Id: i + 1, Username: fmt.Sprintf("user%d", i+1)})
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			for n := 0; n < iterations; n++ {
				roomId := fmt.Sprintf("project_%d", (i+n)%numRooms)
				tc.rooms.Join(s, roomId)
				if n%3 == 0 {
					tc.rooms.Leave(s, roomId)
				}
			}
		}(i, s)
	}
	wg.Wait()

	// every room's member set must mirror each member's joined set
	for i := 0; i < numRooms; i++ {
		roomId := fmt.Sprintf("project_%d", i)
		for _, member := range tc.rooms.MembersOf(roomId) {
			assert.Containsf(t, tc.rooms.Rooms(member), roomId,
				"expected session %q joined set to contain %q", member.Id(), roomId)
		}
	}
	for _, s := range sessions {
		for _, roomId := range tc.rooms.Rooms(s) {
			assert.Truef(t, tc.rooms.Contains(s, roomId),
				"expected room %q members to contain session %q", roomId, s.Id())
		}
	}
}
