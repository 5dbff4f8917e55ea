package services

import (
	"errors"
	"testing"
	"time"

	"taskboard/internal/models"
)

var today = models.Date{Year: 2026, Month: time.October, Day: 17}

func datePtr(y int, m time.Month, d int) *models.Date {
	return &models.Date{Year: y, Month: m, Day: d}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name      string
		draft     models.TaskDraft
		wantField string
	}{
		{name: "minimal", draft: models.TaskDraft{ProjectID: "P1", Title: "Design mockups"}},
		{name: "due today", draft: models.TaskDraft{ProjectID: "P1", Title: "t", DueDate: datePtr(2026, time.October, 17)}},
		{name: "due tomorrow", draft: models.TaskDraft{ProjectID: "P1", Title: "t", DueDate: datePtr(2026, time.October, 18)}},
		{name: "empty title", draft: models.TaskDraft{ProjectID: "P1", Title: "   "}, wantField: "title"},
		{name: "missing project", draft: models.TaskDraft{Title: "t"}, wantField: "projectId"},
		{name: "bad priority", draft: models.TaskDraft{ProjectID: "P1", Title: "t", Priority: "urgent"}, wantField: "priority"},
		{name: "due yesterday", draft: models.TaskDraft{ProjectID: "P1", Title: "t", DueDate: datePtr(2026, time.October, 16)}, wantField: "dueDate"},
		{name: "due last year", draft: models.TaskDraft{ProjectID: "P1", Title: "t", DueDate: datePtr(2025, time.December, 31)}, wantField: "dueDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateCreate(tt.draft, today)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Fatalf("expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}

func TestValidateCreateNormalizes(t *testing.T) {
	got, err := ValidateCreate(models.TaskDraft{ProjectID: " P1 ", Title: "  Design mockups "}, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Design mockups" || got.ProjectID != "P1" {
		t.Fatalf("expected trimmed fields, got %+v", got)
	}
	if got.Priority != models.PriorityMedium {
		t.Fatalf("expected default priority medium, got %q", got.Priority)
	}
}

func TestValidateUpdate(t *testing.T) {
	empty := ""
	bad := models.TaskPriority("asap")

	if _, err := ValidateUpdate(models.TaskPatch{Title: &empty}, today); !IsValidation(err) {
		t.Fatalf("empty title: expected ValidationError, got %v", err)
	}
	if _, err := ValidateUpdate(models.TaskPatch{Priority: &bad}, today); !IsValidation(err) {
		t.Fatalf("bad priority: expected ValidationError, got %v", err)
	}
	if _, err := ValidateUpdate(models.TaskPatch{DueDate: datePtr(2026, time.October, 1)}, today); !IsValidation(err) {
		t.Fatalf("past due date: expected ValidationError, got %v", err)
	}
	if _, err := ValidateUpdate(models.TaskPatch{DueDate: datePtr(2027, time.January, 1)}, today); err != nil {
		t.Fatalf("future due date: unexpected error %v", err)
	}
	if _, err := ValidateUpdate(models.TaskPatch{ClearDueDate: true}, today); err != nil {
		t.Fatalf("clearing due date: unexpected error %v", err)
	}
}
