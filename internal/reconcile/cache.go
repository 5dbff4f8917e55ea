// Package reconcile keeps a client's view of one project's tasks in step with
// the events its peers broadcast.
package reconcile

import (
	"sort"

	"taskboard/internal/models"
)

// Cache is the local copy of the tasks in the project being viewed, keyed by
// task id. It is not safe for concurrent use.
type Cache struct {
	projectID string
	tasks     map[string]models.Task
}

func NewCache(projectID string) *Cache {
	return &Cache{projectID: projectID, tasks: make(map[string]models.Task)}
}

func (c *Cache) ProjectID() string { return c.projectID }

func (c *Cache) Len() int { return len(c.tasks) }

func (c *Cache) Get(id string) (models.Task, bool) {
	t, ok := c.tasks[id]
	return t, ok
}

// Replace discards everything and loads tasks as the view of projectID.
// Used after a room switch, when events for the new room were never seen.
func (c *Cache) Replace(projectID string, tasks []models.Task) {
	c.projectID = projectID
	c.tasks = make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		c.tasks[t.ID] = t
	}
}

// ApplyCreated adds t unless a task with the same id is already cached,
// which happens when this client created it optimistically.
func (c *Cache) ApplyCreated(t models.Task) bool {
	if _, ok := c.tasks[t.ID]; ok {
		return false
	}
	c.tasks[t.ID] = t
	return true
}

// ApplyUpdated overwrites the cached task, inserting it if it arrived before
// its create.
func (c *Cache) ApplyUpdated(t models.Task) bool {
	c.tasks[t.ID] = t
	return true
}

func (c *Cache) ApplyDeleted(id string) bool {
	if _, ok := c.tasks[id]; !ok {
		return false
	}
	delete(c.tasks, id)
	return true
}

// Apply reconciles one event and reports whether the cache changed. Events for
// another project and events missing their payload are ignored.
func (c *Cache) Apply(ev models.Event) bool {
	if ev.ProjectID != c.projectID {
		return false
	}
	switch ev.Kind {
	case models.EventCreated:
		if ev.Task == nil || ev.Task.ID == "" {
			return false
		}
		return c.ApplyCreated(*ev.Task)
	case models.EventUpdated:
		if ev.Task == nil || ev.Task.ID == "" {
			return false
		}
		return c.ApplyUpdated(*ev.Task)
	case models.EventDeleted:
		return c.ApplyDeleted(ev.TaskID)
	}
	return false
}

// Snapshot returns the cached tasks ordered by creation time, then id.
func (c *Cache) Snapshot() []models.Task {
	out := make([]models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Progress summarizes the cached tasks the same way the server does.
func (c *Cache) Progress() models.ProjectProgress {
	return models.ProgressOf(c.projectID, c.Snapshot())
}
