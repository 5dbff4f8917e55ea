// Package client is a Go client for the task board: REST mutations plus a
// live WebSocket subscription that keeps a local task cache reconciled.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"taskboard/internal/models"
	"taskboard/internal/realtime"
	"taskboard/internal/reconcile"
)

var ErrClosed = errors.New("client session closed")

type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// Token is sent as a bearer token. UserID is sent as X-User-ID when
	// Token is empty.
	Token  string
	UserID string
	// Timezone is sent as X-Timezone so that due dates are checked against
	// this client's calendar day. An IANA name or a UTC offset like +05:00.
	Timezone string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	// AckTimeout bounds the wait for joined/left acknowledgements.
	AckTimeout time.Duration
	Log        *logrus.Entry
}

// Session is one client connection: the project it is viewing, the local
// cache of that project's tasks, and the socket that keeps it current.
type Session struct {
	api        *api
	conn       *websocket.Conn
	log        *logrus.Entry
	ackTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	room    string
	cache   *reconcile.Cache
	syncing bool
	pending []models.Event
	errs    []string

	acks    chan realtime.Message
	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Dial opens the WebSocket and returns a session that is not yet viewing any
// project.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	} else if cfg.UserID != "" {
		header.Set("X-User-ID", cfg.UserID)
	}
	if cfg.Timezone != "" {
		header.Set("X-Timezone", cfg.Timezone)
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = logrus.NewEntry(l)
	}
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}

	s := &Session{
		api:        &api{base: base, http: httpClient, header: header},
		conn:       conn,
		log:        log.WithField("user", cfg.UserID),
		ackTimeout: ackTimeout,
		cache:      reconcile.NewCache(""),
		acks:       make(chan realtime.Message, 16),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Room is the project currently being viewed.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Tasks returns a snapshot of the local cache.
func (s *Session) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Snapshot()
}

func (s *Session) Task(id string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(id)
}

// Progress is computed from the local cache.
func (s *Session) Progress() models.ProjectProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Progress()
}

// ServerProgress asks the server instead.
func (s *Session) ServerProgress(ctx context.Context, projectID string) (models.ProjectProgress, error) {
	return s.api.progress(ctx, projectID)
}

// ServerErrors returns the error replies the server has sent so far.
func (s *Session) ServerErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errs...)
}

// ViewProject switches the session to projectID: it leaves the previous room,
// joins the new one, and refetches the task list, since events for the new
// room were never delivered here.
func (s *Session) ViewProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return errors.New("project id is required")
	}
	prev := s.Room()
	if prev != "" && prev != projectID {
		if err := s.send(realtime.Message{Type: realtime.TypeLeaveRoom, ProjectID: prev}); err != nil {
			return err
		}
		if err := s.awaitAck(ctx, realtime.TypeLeft, prev); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.room = projectID
	s.syncing = true
	s.pending = nil
	s.mu.Unlock()

	if err := s.send(realtime.Message{Type: realtime.TypeJoinRoom, ProjectID: projectID}); err != nil {
		s.endSync(nil, err)
		return err
	}
	if err := s.awaitAck(ctx, realtime.TypeJoined, projectID); err != nil {
		s.endSync(nil, err)
		return err
	}

	tasks, err := s.api.listByProject(ctx, projectID)
	s.endSync(tasks, err)
	return err
}

// endSync installs the refetched list and replays events that arrived while
// it was in flight.
func (s *Session) endSync(tasks []models.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.cache.Replace(s.room, tasks)
		for _, ev := range s.pending {
			s.cache.Apply(ev)
		}
	} else {
		s.cache.Replace(s.room, nil)
	}
	s.pending = nil
	s.syncing = false
	s.notify()
}

// CreateTask stores a task, adds it to the local cache and tells the room.
func (s *Session) CreateTask(ctx context.Context, in NewTask) (*models.Task, error) {
	task, err := s.api.createTask(ctx, in)
	if err != nil {
		return nil, err
	}
	s.applyAndEmit(models.NewCreatedEvent(*task))
	return task, nil
}

func (s *Session) UpdateTask(ctx context.Context, id string, ch TaskChanges) (*models.Task, error) {
	task, err := s.api.updateTask(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	s.applyAndEmit(models.NewUpdatedEvent(*task))
	return task, nil
}

// MoveTask changes only the status.
func (s *Session) MoveTask(ctx context.Context, id string, to models.TaskStatus) (*models.Task, error) {
	task, err := s.api.moveTask(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.applyAndEmit(models.NewUpdatedEvent(*task))
	return task, nil
}

// DeleteTask reports false when the task was already gone; nothing is emitted
// in that case.
func (s *Session) DeleteTask(ctx context.Context, id string) (bool, error) {
	task, err := s.api.deleteTask(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.mu.Lock()
		s.cache.ApplyDeleted(id)
		s.mu.Unlock()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.applyAndEmit(models.NewDeletedEvent(task.ProjectID, task.ID))
	return true, nil
}

// applyAndEmit updates the local cache first, then publishes to the room.
// Changes to a project other than the one being viewed are not published;
// this session is not a member of that room.
func (s *Session) applyAndEmit(ev models.Event) {
	s.mu.Lock()
	inRoom := ev.ProjectID == s.room
	if inRoom {
		s.cache.Apply(ev)
		s.notify()
	}
	s.mu.Unlock()

	if !inRoom {
		s.log.WithFields(logrus.Fields{"project": ev.ProjectID, "task": ev.TaskID}).
			Debug("change outside the viewed project, not emitted")
		return
	}
	if err := s.send(realtime.MessageFromEvent(ev)); err != nil {
		s.log.WithError(err).WithField("task", ev.TaskID).Warn("emit event")
	}
}

// WaitFor blocks until cond holds for the cached tasks or ctx is done.
func (s *Session) WaitFor(ctx context.Context, cond func([]models.Task) bool) error {
	for {
		if cond(s.Tasks()) {
			return nil
		}
		select {
		case <-s.changed:
		case <-s.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Session) send(m realtime.Message) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.ackTimeout))
	return s.conn.WriteJSON(m)
}

func (s *Session) awaitAck(ctx context.Context, typ realtime.MessageType, projectID string) error {
	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()
	for {
		select {
		case m := <-s.acks:
			if m.Type == typ && m.ProjectID == projectID {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("no %s for %s", typ, projectID)
		case <-s.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notify must be called with mu held.
func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Session) readLoop() {
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.WithError(err).Info("connection closed")
			}
			return
		}
		var m realtime.Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.WithError(err).Warn("malformed server message")
			continue
		}

		switch m.Type {
		case realtime.TypeJoined, realtime.TypeLeft:
			select {
			case s.acks <- m:
			default:
			}
		case realtime.TypeError:
			s.mu.Lock()
			s.errs = append(s.errs, m.Error)
			s.mu.Unlock()
			s.log.WithField("project", m.ProjectID).Warn("server error: " + m.Error)
		default:
			ev, ok := m.Event()
			if !ok {
				continue
			}
			s.mu.Lock()
			if s.syncing {
				s.pending = append(s.pending, ev)
			} else if s.cache.Apply(ev) {
				s.notify()
			}
			s.mu.Unlock()
		}
	}
}
