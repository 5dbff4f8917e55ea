package reconcile

import (
	"testing"
	"time"

	"taskboard/internal/models"
)

func task(id, title string, status models.TaskStatus) models.Task {
	return models.Task{ID: id, ProjectID: "P1", Title: title, Status: status}
}

func TestCreatedIsDeduplicated(t *testing.T) {
	c := NewCache("P1")
	mine := task("t1", "optimistic", models.StatusTodo)
	if !c.ApplyCreated(mine) {
		t.Fatal("first create should apply")
	}

	echo := task("t1", "from server", models.StatusTodo)
	if c.Apply(models.NewCreatedEvent(echo)) {
		t.Fatal("duplicate create changed the cache")
	}
	if got, _ := c.Get("t1"); got.Title != "optimistic" {
		t.Fatalf("duplicate create overwrote the task: %+v", got)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", c.Len())
	}
}

func TestUpdatedReplacesOrInserts(t *testing.T) {
	c := NewCache("P1")
	c.ApplyCreated(task("t1", "Design", models.StatusTodo))

	c.Apply(models.NewUpdatedEvent(task("t1", "Design", models.StatusDone)))
	if got, _ := c.Get("t1"); got.Status != models.StatusDone {
		t.Fatalf("update not applied: %+v", got)
	}

	// update for a task never seen acts as a late create
	if !c.Apply(models.NewUpdatedEvent(task("t2", "late", models.StatusInProgress))) {
		t.Fatal("late update should insert")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 tasks, got %d", c.Len())
	}
}

func TestDeletedRemovesIfPresent(t *testing.T) {
	c := NewCache("P1")
	c.ApplyCreated(task("t1", "a", models.StatusTodo))

	if !c.Apply(models.NewDeletedEvent("P1", "t1")) {
		t.Fatal("delete should apply")
	}
	if c.Apply(models.NewDeletedEvent("P1", "t1")) {
		t.Fatal("second delete should be a no-op")
	}
	if c.Len() != 0 {
		t.Fatalf("cache not empty: %d", c.Len())
	}
}

func TestEventsForOtherProjectsAreIgnored(t *testing.T) {
	c := NewCache("P1")
	other := models.Task{ID: "t9", ProjectID: "P2"}
	if c.Apply(models.NewCreatedEvent(other)) {
		t.Fatal("event for P2 applied to P1 cache")
	}
	if c.Apply(models.Event{Kind: models.EventCreated, ProjectID: "P1"}) {
		t.Fatal("created event without a task applied")
	}
}

func TestReplaceSwitchesProject(t *testing.T) {
	c := NewCache("P1")
	c.ApplyCreated(task("t1", "a", models.StatusTodo))

	c.Replace("P2", []models.Task{{ID: "u1", ProjectID: "P2", Status: models.StatusDone}})
	if c.ProjectID() != "P2" || c.Len() != 1 {
		t.Fatalf("unexpected cache after replace: %s %d", c.ProjectID(), c.Len())
	}
	if _, ok := c.Get("t1"); ok {
		t.Fatal("old project's task survived the switch")
	}
	if p := c.Progress(); p.Completed != 1 || p.Percent != 100 {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestSnapshotOrder(t *testing.T) {
	c := NewCache("P1")
	base := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		tk := task(id, id, models.StatusTodo)
		tk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		c.ApplyCreated(tk)
	}
	snap := c.Snapshot()
	for i, want := range []string{"c", "a", "b"} {
		if snap[i].ID != want {
			t.Fatalf("position %d: got %s want %s", i, snap[i].ID, want)
		}
	}
}
