package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

// TaskLookup reads the stored copy of a task so that only authoritative
// payloads are relayed.
type TaskLookup interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
}

type handlerFunc func(ctx context.Context, s *Session, msg Message)

// Hub serves WebSocket sessions: it owns their lifecycle and dispatches their
// messages by type.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	tasks       TaskLookup
	cfg         SessionConfig
	log         *logrus.Entry

	handlers map[MessageType]handlerFunc

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

func NewHub(registry *Registry, broadcaster *Broadcaster, tasks TaskLookup, cfg SessionConfig, log *logrus.Entry) *Hub {
	h := &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		tasks:       tasks,
		cfg:         cfg,
		log:         log,
		sessions:    make(map[*Session]struct{}),
	}
	h.handlers = map[MessageType]handlerFunc{
		TypeJoinRoom:    h.handleJoin,
		TypeLeaveRoom:   h.handleLeave,
		TypeTaskCreated: h.handleTaskChanged,
		TypeTaskUpdated: h.handleTaskChanged,
		TypeTaskDeleted: h.handleTaskDeleted,
	}
	return h
}

// Serve runs one connection to completion. Room membership is always
// released before Serve returns.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, label string) {
	s := newSession(conn, label, h.cfg, h.log)
	if !h.track(s) {
		s.Close()
		return
	}
	s.log.Info("session connected")

	defer func() {
		rooms := h.registry.LeaveAll(s)
		h.untrack(s)
		s.Close()
		s.log.WithField("rooms", rooms).Info("session disconnected")
	}()

	go s.writePump()
	s.readPump(func(msg Message) {
		h.dispatch(ctx, s, msg)
	})
}

func (h *Hub) dispatch(ctx context.Context, s *Session, msg Message) {
	handle, ok := h.handlers[msg.Type]
	if !ok {
		s.replyError(msg.ProjectID, "unknown message type "+string(msg.Type))
		return
	}
	if msg.ProjectID == "" {
		s.replyError("", "projectId is required")
		return
	}
	handle(ctx, s, msg)
}

func (h *Hub) handleJoin(_ context.Context, s *Session, msg Message) {
	h.registry.Join(msg.ProjectID, s)
	s.log.WithField("project", msg.ProjectID).Debug("joined room")
	s.reply(Message{Type: TypeJoined, ProjectID: msg.ProjectID})
}

func (h *Hub) handleLeave(_ context.Context, s *Session, msg Message) {
	h.registry.Leave(msg.ProjectID, s)
	s.log.WithField("project", msg.ProjectID).Debug("left room")
	s.reply(Message{Type: TypeLeft, ProjectID: msg.ProjectID})
}

// canPublish replies with an error unless s has an identity and is a member
// of the room. Anonymous sessions may watch rooms but not emit into them.
func (h *Hub) canPublish(s *Session, projectID string) bool {
	if s.Label() == "" {
		s.replyError(projectID, "identity required to publish")
		return false
	}
	if !h.registry.IsMember(projectID, s) {
		s.replyError(projectID, "join the room before publishing to it")
		return false
	}
	return true
}

// handleTaskChanged relays the stored version of a created or updated task.
func (h *Hub) handleTaskChanged(ctx context.Context, s *Session, msg Message) {
	if !h.canPublish(s, msg.ProjectID) {
		return
	}
	ev, _ := msg.Event()
	if ev.TaskID == "" {
		s.replyError(msg.ProjectID, "task is required")
		return
	}

	stored, err := h.tasks.GetByID(ctx, ev.TaskID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.replyError(msg.ProjectID, "task not found")
			return
		}
		s.log.WithError(err).WithField("task", ev.TaskID).Error("lookup task for relay")
		s.replyError(msg.ProjectID, "store unavailable")
		return
	}
	if stored.ProjectID != msg.ProjectID {
		s.replyError(msg.ProjectID, "task belongs to another project")
		return
	}

	out := models.NewUpdatedEvent(*stored)
	if ev.Kind == models.EventCreated {
		out = models.NewCreatedEvent(*stored)
	}
	h.broadcaster.Broadcast(ctx, msg.ProjectID, out, s)
}

// handleTaskDeleted relays a deletion only once the store no longer has the task.
func (h *Hub) handleTaskDeleted(ctx context.Context, s *Session, msg Message) {
	if !h.canPublish(s, msg.ProjectID) {
		return
	}
	if msg.TaskID == "" {
		s.replyError(msg.ProjectID, "taskId is required")
		return
	}

	_, err := h.tasks.GetByID(ctx, msg.TaskID)
	switch {
	case err == nil:
		s.replyError(msg.ProjectID, "task still exists")
		return
	case !errors.Is(err, repositories.ErrNotFound):
		s.log.WithError(err).WithField("task", msg.TaskID).Error("lookup task for relay")
		s.replyError(msg.ProjectID, "store unavailable")
		return
	}
	h.broadcaster.Broadcast(ctx, msg.ProjectID, models.NewDeletedEvent(msg.ProjectID, msg.TaskID), s)
}

// DeliverRelayed hands a payload published by another instance to this
// instance's room members.
func (h *Hub) DeliverRelayed(projectID string, payload []byte, excludeID string) int {
	return h.broadcaster.DeliverLocal(projectID, payload, excludeID)
}

func (h *Hub) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

func (h *Hub) untrack(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// SessionCount reports the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every session and refuses new ones. Each closed session
// still leaves its rooms through Serve.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
