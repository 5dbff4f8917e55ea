package services

import (
	"strings"

	"taskboard/internal/models"
)

// ValidateCreate checks a draft and returns it normalized: title trimmed,
// priority defaulted to medium. today is the creating client's calendar day.
func ValidateCreate(draft models.TaskDraft, today models.Date) (models.TaskDraft, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return draft, invalid("title", "must not be empty")
	}
	draft.ProjectID = strings.TrimSpace(draft.ProjectID)
	if draft.ProjectID == "" {
		return draft, invalid("projectId", "must not be empty")
	}
	if draft.Priority == "" {
		draft.Priority = models.PriorityMedium
	}
	if !draft.Priority.Valid() {
		return draft, invalid("priority", "must be one of low, medium, high")
	}
	if err := validateDueDate(draft.DueDate, today); err != nil {
		return draft, err
	}
	return draft, nil
}

// ValidateUpdate checks the fields a patch changes. Status moves are checked
// separately by ValidateTransition because they need the current status.
func ValidateUpdate(patch models.TaskPatch, today models.Date) (models.TaskPatch, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return patch, invalid("title", "must not be empty")
		}
		patch.Title = &title
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return patch, invalid("priority", "must be one of low, medium, high")
	}
	if !patch.ClearDueDate {
		// done tasks may still have their due date moved
		if err := validateDueDate(patch.DueDate, today); err != nil {
			return patch, err
		}
	}
	return patch, nil
}

func validateDueDate(due *models.Date, today models.Date) error {
	if due == nil {
		return nil
	}
	if due.Before(today) {
		return invalid("dueDate", "cannot be in the past")
	}
	return nil
}
