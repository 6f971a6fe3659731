package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/taskstream/taskstream/internal/auth"
	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/realtime"
	"github.com/taskstream/taskstream/internal/stats"
	"github.com/taskstream/taskstream/internal/store"
	"github.com/taskstream/taskstream/internal/testutil"
)

const (
	testSigningKey   = "test-signing-key"
	testPublishToken = "publish-secret"
)

type testApp struct {
	app   *App
	mux   *http.ServeMux
	store *store.MockWorkspaceStore
}

// newTestApp wires the realtime stack behind the HTTP surface with a
// mocked workspace store and a real token verifier.
func newTestApp(t *testing.T) *testApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	ws := &store.MockWorkspaceStore{}

	rooms := realtime.NewRoomDirectory(logger, su)
	registry, err := realtime.NewSessionRegistry(logger, su, rooms, 256)
	if err != nil {
		t.Fatalf("failed to create session registry: %v", err)
	}
	dispatcher := realtime.NewDispatcher(logger, su, rooms)
	presence := realtime.NewPresenceTracker(logger, ws, dispatcher, 50*time.Millisecond)
	registry.SetPresenceListener(presence)

	gw := realtime.NewGateway(logger, auth.NewJWTAuthenticator([]byte(testSigningKey)), ws,
		registry, rooms, dispatcher, presence, time.Second, 60*time.Second)

	cfg := &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     []byte(testSigningKey),
		PublishToken:   testPublishToken,
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	mux := http.NewServeMux()
	app := NewApp(mux, logger, gw, dispatcher, ws, cfg)

	return &testApp{app: app, mux: mux, store: ws}
}
