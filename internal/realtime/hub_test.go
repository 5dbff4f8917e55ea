package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]models.Task
}

func (m *memTasks) GetByID(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

func (m *memTasks) put(t models.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
}

func (m *memTasks) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
}

type hubFixture struct {
	hub   *Hub
	reg   *Registry
	tasks *memTasks
	url   string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	return newHubFixtureWith(t, DefaultSessionConfig())
}

func newHubFixtureWith(t *testing.T, cfg SessionConfig) *hubFixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	reg := NewRegistry()
	tasks := &memTasks{tasks: make(map[string]models.Task)}
	hub := NewHub(reg, NewBroadcaster(reg, log), tasks, cfg, log)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return &hubFixture{hub: hub, reg: reg, tasks: tasks, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (f *hubFixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?user="+user, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, c *websocket.Conn, m Message) {
	t.Helper()
	if err := c.WriteJSON(m); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func expect(t *testing.T, c *websocket.Conn, typ MessageType) Message {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := c.ReadJSON(&m); err != nil {
		t.Fatalf("waiting for %s: %v", typ, err)
	}
	if m.Type != typ {
		t.Fatalf("expected %s, got %+v", typ, m)
	}
	return m
}

func expectSilence(t *testing.T, c *websocket.Conn) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var m Message
	if err := c.ReadJSON(&m); err == nil {
		t.Fatalf("expected nothing, got %+v", m)
	}
}

func join(t *testing.T, c *websocket.Conn, projectID string) {
	t.Helper()
	send(t, c, Message{Type: TypeJoinRoom, ProjectID: projectID})
	expect(t, c, TypeJoined)
}

func TestHubRelaysStoredTaskToOtherMembers(t *testing.T) {
	f := newHubFixture(t)
	x, y := f.dial(t, "x"), f.dial(t, "y")
	join(t, x, "P1")
	join(t, y, "P1")

	stored := models.Task{ID: "t1", ProjectID: "P1", Title: "Design mockups", Status: models.StatusDone}
	f.tasks.put(stored)

	// the client claims a stale title; peers get the stored record
	claimed := stored
	claimed.Title = "stale"
	send(t, x, Message{Type: TypeTaskUpdated, ProjectID: "P1", Task: &claimed})

	got := expect(t, y, TypeTaskUpdated)
	if got.Task == nil || got.Task.Title != "Design mockups" || got.Task.Status != models.StatusDone {
		t.Fatalf("unexpected relayed task %+v", got.Task)
	}
	expectSilence(t, x)
}

func TestHubIgnoresNonMembers(t *testing.T) {
	f := newHubFixture(t)
	x, y, z := f.dial(t, "x"), f.dial(t, "y"), f.dial(t, "z")
	join(t, x, "P1")
	join(t, y, "P1")
	join(t, z, "P2")

	f.tasks.put(models.Task{ID: "t1", ProjectID: "P1", Title: "a"})
	send(t, x, Message{Type: TypeTaskCreated, ProjectID: "P1", Task: &models.Task{ID: "t1", ProjectID: "P1"}})

	expect(t, y, TypeTaskCreated)
	expectSilence(t, z)
}

func TestHubRejectsPublishWithoutMembership(t *testing.T) {
	f := newHubFixture(t)
	x := f.dial(t, "x")
	f.tasks.put(models.Task{ID: "t1", ProjectID: "P1"})

	send(t, x, Message{Type: TypeTaskUpdated, ProjectID: "P1", Task: &models.Task{ID: "t1", ProjectID: "P1"}})
	expect(t, x, TypeError)
}

func TestHubDeleteRelayedOnlyWhenGone(t *testing.T) {
	f := newHubFixture(t)
	x, y := f.dial(t, "x"), f.dial(t, "y")
	join(t, x, "P1")
	join(t, y, "P1")
	f.tasks.put(models.Task{ID: "t1", ProjectID: "P1"})

	send(t, x, Message{Type: TypeTaskDeleted, ProjectID: "P1", TaskID: "t1"})
	expect(t, x, TypeError)

	f.tasks.remove("t1")
	send(t, x, Message{Type: TypeTaskDeleted, ProjectID: "P1", TaskID: "t1"})
	// the first frame y sees is the second attempt; the first was never relayed
	got := expect(t, y, TypeTaskDeleted)
	if got.TaskID != "t1" {
		t.Fatalf("unexpected delete %+v", got)
	}
	expectSilence(t, y)
}

func TestHubAnonymousSessionCannotPublish(t *testing.T) {
	f := newHubFixture(t)
	anon, y := f.dial(t, ""), f.dial(t, "y")
	join(t, anon, "P1")
	join(t, y, "P1")
	f.tasks.put(models.Task{ID: "t1", ProjectID: "P1"})

	send(t, anon, Message{Type: TypeTaskUpdated, ProjectID: "P1", Task: &models.Task{ID: "t1", ProjectID: "P1"}})
	if got := expect(t, anon, TypeError); got.Error != "identity required to publish" {
		t.Fatalf("unexpected reply %+v", got)
	}
	f.tasks.remove("t1")
	send(t, anon, Message{Type: TypeTaskDeleted, ProjectID: "P1", TaskID: "t1"})
	expect(t, anon, TypeError)
	expectSilence(t, y)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	f := newHubFixture(t)
	x, y := f.dial(t, "x"), f.dial(t, "y")
	join(t, x, "P1")
	join(t, y, "P1")

	send(t, y, Message{Type: TypeLeaveRoom, ProjectID: "P1"})
	expect(t, y, TypeLeft)

	f.tasks.put(models.Task{ID: "t1", ProjectID: "P1"})
	send(t, x, Message{Type: TypeTaskCreated, ProjectID: "P1", Task: &models.Task{ID: "t1", ProjectID: "P1"}})
	expectSilence(t, y)
}

func TestHubMalformedAndUnknownMessages(t *testing.T) {
	f := newHubFixture(t)
	x := f.dial(t, "x")

	if err := x.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	expect(t, x, TypeError)

	send(t, x, Message{Type: "rename-project", ProjectID: "P1"})
	expect(t, x, TypeError)

	send(t, x, Message{Type: TypeJoinRoom})
	expect(t, x, TypeError)

	// the connection survives all of the above
	join(t, x, "P1")
}

func TestHubDisconnectLeavesAllRooms(t *testing.T) {
	f := newHubFixture(t)
	x := f.dial(t, "x")
	join(t, x, "P1")
	join(t, x, "P2")
	if f.reg.RoomCount() != 2 {
		t.Fatalf("expected 2 rooms, got %d", f.reg.RoomCount())
	}

	x.Close()
	deadline := time.Now().Add(2 * time.Second)
	for f.reg.RoomCount() != 0 || f.hub.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("rooms=%d sessions=%d after disconnect", f.reg.RoomCount(), f.hub.SessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDropsPeerThatStopsAnsweringPings(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.PingPeriod = 50 * time.Millisecond
	cfg.PongWait = 200 * time.Millisecond
	f := newHubFixtureWith(t, cfg)

	x := f.dial(t, "x")
	join(t, x, "P1")
	join(t, x, "P2")

	// keep reading so pings arrive, but never answer them
	x.SetPingHandler(func(string) error { return nil })
	_ = x.SetReadDeadline(time.Time{})
	go func() {
		for {
			if _, _, err := x.ReadMessage(); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.reg.RoomCount() != 0 || f.hub.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("rooms=%d sessions=%d after pong timeout", f.reg.RoomCount(), f.hub.SessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
