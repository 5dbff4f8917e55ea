package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"taskboard/internal/models"
)

// ErrNotFound is returned when the server has no task with the given id.
var ErrNotFound = errors.New("task not found")

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api %d: %s (field %s)", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
}

// NewTask is the body of a create request.
type NewTask struct {
	ProjectID   string              `json:"projectId"`
	UserID      string              `json:"userId,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	DueDate     string              `json:"dueDate,omitempty"`
}

// TaskChanges is the body of an update request. Nil fields are left alone.
type TaskChanges struct {
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	Status      *models.TaskStatus   `json:"status,omitempty"`
	Priority    *models.TaskPriority `json:"priority,omitempty"`
	DueDate     *string              `json:"dueDate,omitempty"`
}

// api is a thin REST client for the task endpoints.
type api struct {
	base   string
	http   *http.Client
	header http.Header
}

func (a *api) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rdr)
	if err != nil {
		return err
	}
	for k, vs := range a.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Error, Field: env.Field}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (a *api) createTask(ctx context.Context, in NewTask) (*models.Task, error) {
	var t models.Task
	if err := a.do(ctx, http.MethodPost, "/api/tasks", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *api) updateTask(ctx context.Context, id string, ch TaskChanges) (*models.Task, error) {
	var t models.Task
	if err := a.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), ch, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *api) moveTask(ctx context.Context, id string, to models.TaskStatus) (*models.Task, error) {
	var t models.Task
	body := map[string]models.TaskStatus{"to": to}
	if err := a.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/status", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *api) deleteTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := a.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *api) listByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	var ts []models.Task
	if err := a.do(ctx, http.MethodGet, "/api/tasks/project/"+url.PathEscape(projectID), nil, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (a *api) progress(ctx context.Context, projectID string) (models.ProjectProgress, error) {
	var p models.ProjectProgress
	err := a.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/progress", nil, &p)
	return p, err
}
