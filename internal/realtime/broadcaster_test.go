package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/internal/models"
)

func newTestBroadcaster() (*Broadcaster, *Registry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	reg := NewRegistry()
	return NewBroadcaster(reg, logrus.NewEntry(logger)), reg, hook
}

func decode(t *testing.T, raw []byte) Message {
	t.Helper()
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

func TestBroadcastSkipsSenderAndOtherRooms(t *testing.T) {
	b, reg, _ := newTestBroadcaster()
	x, y, z := newFake("x"), newFake("y"), newFake("z")
	reg.Join("P1", x)
	reg.Join("P1", y)
	reg.Join("P2", z)

	task := models.Task{ID: "t1", ProjectID: "P1", Title: "Design", Status: models.StatusDone}
	n := b.Broadcast(context.Background(), "P1", models.NewUpdatedEvent(task), x)
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(x.received()) != 0 {
		t.Fatal("sender received its own event")
	}
	if len(z.received()) != 0 {
		t.Fatal("member of another room received the event")
	}
	got := y.received()
	if len(got) != 1 {
		t.Fatalf("y got %d messages", len(got))
	}
	m := decode(t, got[0])
	if m.Type != TypeTaskUpdated || m.Task == nil || m.Task.Status != models.StatusDone {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestBroadcastNilExcludeReachesEveryone(t *testing.T) {
	b, reg, _ := newTestBroadcaster()
	x, y := newFake("x"), newFake("y")
	reg.Join("P1", x)
	reg.Join("P1", y)

	n := b.Broadcast(context.Background(), "P1", models.NewDeletedEvent("P1", "t1"), nil)
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	m := decode(t, x.received()[0])
	if m.Type != TypeTaskDeleted || m.TaskID != "t1" || m.Task != nil {
		t.Fatalf("unexpected delete message %+v", m)
	}
}

func TestBroadcastEmptyRoom(t *testing.T) {
	b, _, _ := newTestBroadcaster()
	if n := b.Broadcast(context.Background(), "nobody", models.NewDeletedEvent("nobody", "t"), nil); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}

func TestFailedDeliveryIsLoggedAndOthersStillReceive(t *testing.T) {
	b, reg, hook := newTestBroadcaster()
	bad, good := newFake("bad"), newFake("good")
	bad.fail = errBrokenPipe
	reg.Join("P1", bad)
	reg.Join("P1", good)

	n := b.Broadcast(context.Background(), "P1", models.NewCreatedEvent(models.Task{ID: "t1", ProjectID: "P1"}), nil)
	if n != 1 || len(good.received()) != 1 {
		t.Fatalf("healthy member missed the event (n=%d)", n)
	}

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Data["error_class"] != "transport" {
			continue
		}
		err, _ := e.Data[logrus.ErrorKey].(error)
		var terr *TransportError
		if errors.As(err, &terr) && terr.SessionID == "bad" && errors.Is(err, errBrokenPipe) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a transport error log entry for the failing member")
	}
}

func TestBroadcastPreservesOrderPerReceiver(t *testing.T) {
	b, reg, _ := newTestBroadcaster()
	y := newFake("y")
	reg.Join("P1", y)

	for _, id := range []string{"a", "b", "c", "d"} {
		b.Broadcast(context.Background(), "P1", models.NewDeletedEvent("P1", id), nil)
	}
	got := y.received()
	for i, want := range []string{"a", "b", "c", "d"} {
		if m := decode(t, got[i]); m.TaskID != want {
			t.Fatalf("message %d: got %s want %s", i, m.TaskID, want)
		}
	}
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, projectID, excludeID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, projectID+"/"+excludeID)
	return p.err
}

func TestBroadcastForwardsToRelay(t *testing.T) {
	b, reg, hook := newTestBroadcaster()
	pub := &recordingPublisher{err: errors.New("redis down")}
	b.WithRelay(pub)
	x := newFake("x")
	reg.Join("P1", x)

	b.Broadcast(context.Background(), "P1", models.NewDeletedEvent("P1", "t1"), x)
	if len(pub.calls) != 1 || pub.calls[0] != "P1/x" {
		t.Fatalf("unexpected relay calls %v", pub.calls)
	}
	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "relay publish failed" {
			logged = true
		}
	}
	if !logged {
		t.Fatal("expected relay failure to be logged")
	}
}
