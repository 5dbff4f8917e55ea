package models

// EventKind names a task mutation that peers are told about.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// Event is a transient record of one task mutation. Created and updated
// events carry the full task; deleted events carry only TaskID.
type Event struct {
	Kind      EventKind `json:"kind"`
	ProjectID string    `json:"projectId"`
	Task      *Task     `json:"task,omitempty"`
	TaskID    string    `json:"taskId"`
}

func NewCreatedEvent(t Task) Event {
	return Event{Kind: EventCreated, ProjectID: t.ProjectID, Task: &t, TaskID: t.ID}
}

func NewUpdatedEvent(t Task) Event {
	return Event{Kind: EventUpdated, ProjectID: t.ProjectID, Task: &t, TaskID: t.ID}
}

func NewDeletedEvent(projectID, taskID string) Event {
	return Event{Kind: EventDeleted, ProjectID: projectID, TaskID: taskID}
}
