package services

import (
	"errors"
	"testing"

	"taskboard/internal/models"
)

var allStatuses = []models.TaskStatus{models.StatusTodo, models.StatusInProgress, models.StatusDone}

func TestValidateTransitionAcceptsEveryPair(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if err := ValidateTransition(from, to); err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
		}
	}
}

func TestValidateTransitionRejectsUnknownTarget(t *testing.T) {
	for _, to := range []models.TaskStatus{"", "cancelled", "DONE", "in_progress", "new"} {
		err := ValidateTransition(models.StatusTodo, to)
		if !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("target %q: expected ErrInvalidStatus, got %v", to, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "status" {
			t.Errorf("target %q: expected status ValidationError, got %v", to, err)
		}
	}
}

func TestTransitionTableCoversCycleBothWays(t *testing.T) {
	edges := [][2]models.TaskStatus{
		{models.StatusTodo, models.StatusInProgress},
		{models.StatusInProgress, models.StatusDone},
		{models.StatusDone, models.StatusInProgress},
		{models.StatusInProgress, models.StatusTodo},
		{models.StatusDone, models.StatusTodo},
		{models.StatusTodo, models.StatusDone},
	}
	for _, e := range edges {
		if !TaskTransitions[e[0]][e[1]] {
			t.Errorf("missing edge %s -> %s", e[0], e[1])
		}
	}
}
