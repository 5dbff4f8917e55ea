package services

import "taskboard/internal/models"

// TaskTransitions lists the allowed moves between board columns. The board is a
// three-node cycle walked in both directions, so every pair is allowed.
var TaskTransitions = map[models.TaskStatus]map[models.TaskStatus]bool{
	models.StatusTodo:       {models.StatusTodo: true, models.StatusInProgress: true, models.StatusDone: true},
	models.StatusInProgress: {models.StatusTodo: true, models.StatusInProgress: true, models.StatusDone: true},
	models.StatusDone:       {models.StatusTodo: true, models.StatusInProgress: true, models.StatusDone: true},
}

// ValidateTransition fails with ErrInvalidStatus when requested is not a board status.
func ValidateTransition(current, requested models.TaskStatus) error {
	if !requested.Valid() {
		return &ValidationError{Field: "status", Reason: "must be one of todo, in-progress, done", Err: ErrInvalidStatus}
	}
	if !canTransition(current, requested) {
		return &ValidationError{Field: "status", Reason: "transition from " + string(current) + " is not allowed", Err: ErrInvalidStatus}
	}
	return nil
}

func canTransition(current, to models.TaskStatus) bool {
	if current == "" {
		// rows written before a status existed may move anywhere
		return true
	}
	nexts, ok := TaskTransitions[current]
	if !ok {
		return false
	}
	return nexts[to]
}
