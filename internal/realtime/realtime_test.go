package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/taskstream/taskstream/internal/auth"
	"github.com/taskstream/taskstream/internal/stats"
	"github.com/taskstream/taskstream/internal/store"
	"github.com/taskstream/taskstream/internal/testutil"
	"github.com/taskstream/taskstream/internal/types"
)

const testGrace = 50 * time.Millisecond

type testCore struct {
	rooms      *RoomDirectory
	registry   *SessionRegistry
	dispatcher *Dispatcher
	presence   *PresenceTracker
	gw         *Gateway
	store      *store.MockWorkspaceStore
	auth       *auth.MockAuthenticator
}

// newTestCore wires the full realtime stack against mocks. Store and
// auth expectations are left to each test.
func newTestCore(t *testing.T) *testCore {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	ws := &store.MockWorkspaceStore{}
	a := &auth.MockAuthenticator{}

	rooms := NewRoomDirectory(logger, su)
	registry, err := NewSessionRegistry(logger, su, rooms, 256)
	if err != nil {
		t.Fatalf("failed to create session registry: %v", err)
	}
	dispatcher := NewDispatcher(logger, su, rooms)
	presence := NewPresenceTracker(logger, ws, dispatcher, testGrace)
	registry.SetPresenceListener(presence)

	gw := NewGateway(logger, a, ws, registry, rooms, dispatcher, presence,
		time.Second, 60*time.Second)

	return &testCore{
		rooms:      rooms,
		registry:   registry,
		dispatcher: dispatcher,
		presence:   presence,
		gw:         gw,
		store:      ws,
		auth:       a,
	}
}

// expectNoWorkspaces silences presence broadcasts for any user.
func (tc *testCore) expectNoWorkspaces() {
	tc.store.On("ListWorkspacesForUser", mock.Anything, mock.Anything).
		Return([]string{}, nil).Maybe()
}

func (tc *testCore) register(t *testing.T, user types.User) *Session {
	s, err := tc.registry.Register(user, nil, tc.gw, testutil.TestLogger(t))
	if err != nil {
		t.Fatalf("failed to register session for user %d: %v", user.Id, err)
	}
	return s
}

// drain empties a session's send queue and returns what was queued.
func drain(s *Session) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case msg := <-s.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// awaitMessage waits for one outbound message on a session's queue.
func awaitMessage(t *testing.T, s *Session) *ServerMessage {
	t.Helper()

	select {
	case msg := <-s.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for message on session %q", s.id)
		return nil
	}
}
