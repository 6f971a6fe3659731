package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/taskstream/taskstream/internal/realtime"
	"github.com/taskstream/taskstream/internal/types"
)

// PublishEventRequest is what the CRUD layer posts after a durable
// commit. ProjectId is shorthand for the workspace room; Rooms and
// TargetUserId allow explicit routing.
type PublishEventRequest struct {
	Kind         realtime.EventKind `json:"kind"`
	ProjectId    int                `json:"project_id,omitempty"`
	Rooms        []string           `json:"rooms,omitempty"`
	TargetUserId int                `json:"target_user_id,omitempty"`
	Seq          int64              `json:"seq,omitempty"`

	Task         *realtime.TaskPayload         `json:"task,omitempty"`
	Comment      *realtime.CommentPayload      `json:"comment,omitempty"`
	Project      *realtime.ProjectPayload      `json:"project,omitempty"`
	Notification *realtime.NotificationPayload `json:"notification,omitempty"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	token, ok := CredentialFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	if _, err := s.gw.Accept(r.Context(), conn, token); err != nil {
		s.log.Println("handshake failed:", err)
	}
}

func (s *App) publishEvent(w http.ResponseWriter, r *http.Request) {
	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := req.Rooms
	if req.ProjectId > 0 {
		rooms = append(rooms, types.ProjectRoom(req.ProjectId))
	}

	ev := &realtime.Event{
		Kind:         req.Kind,
		Seq:          req.Seq,
		Rooms:        rooms,
		TargetUserId: req.TargetUserId,
		Task:         req.Task,
		Comment:      req.Comment,
		Project:      req.Project,
		Notification: req.Notification,
	}

	if err := s.dispatcher.Publish(ev); err != nil {
		s.log.Println("publish event:", err)
		errResp := &ApiError{StatusCode: http.StatusBadRequest, Message: err.Error()}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *App) status(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, s.gw.Status())
}

func (s *App) healthz(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}
