package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/realtime"
	"github.com/taskstream/taskstream/internal/store"
)

// App is the HTTP surface of the realtime service: the websocket
// endpoint, the mutation-pipeline publish hook, and the operational
// status endpoints.
type App struct {
	log            *log.Logger
	gw             *realtime.Gateway
	dispatcher     *realtime.Dispatcher
	store          store.WorkspaceStore
	mux            *http.Server
	signingKey     []byte
	publishToken   string
	allowedOrigins []string
}

func NewApp(
	mux *http.ServeMux,
	logger *log.Logger,
	gw *realtime.Gateway,
	dispatcher *realtime.Dispatcher,
	ws store.WorkspaceStore,
	cfg *config.Config,
) *App {
	s := &App{
		log:            logger,
		gw:             gw,
		dispatcher:     dispatcher,
		store:          ws,
		signingKey:     cfg.SigningKey,
		publishToken:   cfg.PublishToken,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("POST /api/events", s.serviceAuthMiddleware(s.publishEvent))
	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("GET /healthz", s.healthz)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
