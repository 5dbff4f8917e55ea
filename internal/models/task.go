// internal/models/task.go
package models

import "time"

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the three board statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the canonical record held by the task store.
type Task struct {
	ID          string       `json:"id" db:"id"`
	ProjectID   string       `json:"projectId" db:"project_id"`
	OwnerID     string       `json:"ownerId" db:"owner_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Status      TaskStatus   `json:"status" db:"status"`
	Priority    TaskPriority `json:"priority" db:"priority"`
	DueDate     *Date        `json:"dueDate,omitempty" db:"due_date"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

// TaskDraft carries the client-supplied fields of a task that does not exist yet.
type TaskDraft struct {
	ProjectID   string
	OwnerID     string
	Title       string
	Description string
	Priority    TaskPriority
	DueDate     *Date
}

// TaskPatch is a field-level overwrite. Nil fields are left untouched.
// ClearDueDate removes the due date and wins over DueDate.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *Date
	ClearDueDate bool
}

// Empty reports whether the patch would change nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

// Apply overwrites the fields set in p on a copy of t.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	return t
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	ProjectID *string
	OwnerID   *string
	Status    *TaskStatus
}

// ProjectProgress is derived from the project's tasks on every read.
type ProjectProgress struct {
	ProjectID  string `json:"projectId"`
	Total      int    `json:"total"`
	Todo       int    `json:"todo"`
	InProgress int    `json:"inProgress"`
	Completed  int    `json:"completed"`
	Percent    int    `json:"percent"`
}

// ProgressOf counts tasks per status.
func ProgressOf(projectID string, tasks []Task) ProjectProgress {
	p := ProjectProgress{ProjectID: projectID, Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			p.Todo++
		case StatusInProgress:
			p.InProgress++
		case StatusDone:
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = p.Completed * 100 / p.Total
	}
	return p
}
