package realtime

import (
	"encoding/json"

	"taskboard/internal/models"
)

// MessageType is the name a message is dispatched on, in both directions.
type MessageType string

const (
	TypeJoinRoom    MessageType = "join-room"
	TypeLeaveRoom   MessageType = "leave-room"
	TypeTaskCreated MessageType = "task-created"
	TypeTaskUpdated MessageType = "task-updated"
	TypeTaskDeleted MessageType = "task-deleted"

	// server to client only
	TypeJoined MessageType = "joined"
	TypeLeft   MessageType = "left"
	TypeError  MessageType = "error"
)

// Message is the single frame shape on the socket. Which fields are set
// depends on Type.
type Message struct {
	Type      MessageType  `json:"type"`
	ProjectID string       `json:"projectId,omitempty"`
	Task      *models.Task `json:"task,omitempty"`
	TaskID    string       `json:"taskId,omitempty"`
	Error     string       `json:"error,omitempty"`
}

var kindToType = map[models.EventKind]MessageType{
	models.EventCreated: TypeTaskCreated,
	models.EventUpdated: TypeTaskUpdated,
	models.EventDeleted: TypeTaskDeleted,
}

var typeToKind = map[MessageType]models.EventKind{
	TypeTaskCreated: models.EventCreated,
	TypeTaskUpdated: models.EventUpdated,
	TypeTaskDeleted: models.EventDeleted,
}

func MessageFromEvent(ev models.Event) Message {
	m := Message{Type: kindToType[ev.Kind], ProjectID: ev.ProjectID, TaskID: ev.TaskID}
	if ev.Kind != models.EventDeleted {
		m.Task = ev.Task
	}
	return m
}

// Event converts a task message back into an Event. ok is false for
// non-task messages.
func (m Message) Event() (models.Event, bool) {
	kind, ok := typeToKind[m.Type]
	if !ok {
		return models.Event{}, false
	}
	ev := models.Event{Kind: kind, ProjectID: m.ProjectID, TaskID: m.TaskID}
	if kind != models.EventDeleted && m.Task != nil {
		t := *m.Task
		ev.Task = &t
		if ev.TaskID == "" {
			ev.TaskID = t.ID
		}
	}
	return ev, true
}

func encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}
