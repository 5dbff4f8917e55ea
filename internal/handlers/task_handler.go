package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskboard/internal/models"
	"taskboard/internal/services"
)

type TaskHandler struct {
	service services.TaskService
	log     *logrus.Entry
}

func NewTaskHandler(service services.TaskService, log *logrus.Entry) *TaskHandler {
	return &TaskHandler{service: service, log: log}
}

type createTaskRequest struct {
	ProjectID   string              `json:"projectId"`
	UserID      string              `json:"userId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     string              `json:"dueDate"`
}

// updateTaskRequest keeps dueDate raw so that an explicit null can clear it.
type updateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *models.TaskStatus   `json:"status"`
	Priority    *models.TaskPriority `json:"priority"`
	DueDate     json.RawMessage      `json:"dueDate"`
}

func (r updateTaskRequest) patch() (models.TaskPatch, error) {
	p := models.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
	}
	raw := bytes.TrimSpace(r.DueDate)
	switch {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte(`""`)):
		p.ClearDueDate = true
	default:
		var d models.Date
		if err := json.Unmarshal(raw, &d); err != nil {
			return p, err
		}
		p.DueDate = &d
	}
	return p, nil
}

type changeStatusRequest struct {
	To models.TaskStatus `json:"to"`
}

// @Summary      Create a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        task        body      createTaskRequest  true   "New task"
// @Param        X-Timezone  header    string             false  "Caller's zone for the due-date check"
// @Success      201   {object}  envelope
// @Failure      400   {object}  envelope
// @Failure      500   {object}  envelope
// @Router       /api/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.Create")

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed request body", "")
		return
	}

	draft := models.TaskDraft{
		ProjectID:   req.ProjectID,
		OwnerID:     req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if draft.OwnerID == "" {
		draft.OwnerID = getUserID(c)
	}
	if req.DueDate != "" {
		d, err := models.ParseDate(req.DueDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, "dueDate: not a date", "dueDate")
			return
		}
		draft.DueDate = &d
	}

	ctx, err := clientContext(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), "timezone")
		return
	}
	task, err := h.service.Create(ctx, draft)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusCreated, task)
}

// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        taskId  path      string  true  "Task id"
// @Success      200     {object}  envelope
// @Failure      404     {object}  envelope
// @Router       /api/tasks/{taskId} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.GetByID")

	id, ok := pathParam(c, "taskId")
	if !ok {
		respondError(c, http.StatusBadRequest, "taskId is required", "taskId")
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, task)
}

// @Summary      List a project's tasks
// @Tags         Tasks
// @Produce      json
// @Param        projectId  path      string  true  "Project id"
// @Success      200        {object}  envelope
// @Router       /api/tasks/project/{projectId} [get]
func (h *TaskHandler) ListByProject(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.ListByProject")

	projectID, ok := pathParam(c, "projectId")
	if !ok {
		respondError(c, http.StatusBadRequest, "projectId is required", "projectId")
		return
	}
	tasks, err := h.service.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, tasks)
}

// @Summary      List a user's tasks
// @Tags         Tasks
// @Produce      json
// @Param        userId  path      string  true  "Owner id"
// @Success      200     {object}  envelope
// @Router       /api/tasks/user/{userId} [get]
func (h *TaskHandler) ListByOwner(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.ListByOwner")

	ownerID, ok := pathParam(c, "userId")
	if !ok {
		respondError(c, http.StatusBadRequest, "userId is required", "userId")
		return
	}
	tasks, err := h.service.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, tasks)
}

// @Summary      Update a task
// @Description  Only the fields present in the body are overwritten. dueDate null clears it.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        taskId  path      string             true  "Task id"
// @Param        patch       body      updateTaskRequest  true   "Fields to change"
// @Param        X-Timezone  header    string             false  "Caller's zone for the due-date check"
// @Success      200     {object}  envelope
// @Failure      400     {object}  envelope
// @Failure      404     {object}  envelope
// @Router       /api/tasks/{taskId} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.Update")

	id, ok := pathParam(c, "taskId")
	if !ok {
		respondError(c, http.StatusBadRequest, "taskId is required", "taskId")
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed request body", "")
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondError(c, http.StatusBadRequest, "dueDate: not a date", "dueDate")
		return
	}

	ctx, err := clientContext(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), "timezone")
		return
	}
	task, err := h.service.Update(ctx, id, patch)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, task)
}

// @Summary      Move a task to another status
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        taskId  path      string               true  "Task id"
// @Param        body    body      changeStatusRequest  true  "Target status"
// @Success      200     {object}  envelope
// @Failure      400     {object}  envelope
// @Failure      404     {object}  envelope
// @Router       /api/tasks/{taskId}/status [post]
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.ChangeStatus")

	id, ok := pathParam(c, "taskId")
	if !ok {
		respondError(c, http.StatusBadRequest, "taskId is required", "taskId")
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed request body", "")
		return
	}

	task, err := h.service.UpdateStatus(c.Request.Context(), id, req.To)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, task)
}

// @Summary      Delete a task
// @Description  Returns the deleted task. A second delete of the same id is a 404.
// @Tags         Tasks
// @Produce      json
// @Param        taskId  path      string  true  "Task id"
// @Success      200     {object}  envelope
// @Failure      404     {object}  envelope
// @Router       /api/tasks/{taskId} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.Delete")

	id, ok := pathParam(c, "taskId")
	if !ok {
		respondError(c, http.StatusBadRequest, "taskId is required", "taskId")
		return
	}
	task, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, task)
}

// @Summary      Project progress
// @Tags         Projects
// @Produce      json
// @Param        projectId  path      string  true  "Project id"
// @Success      200        {object}  envelope
// @Router       /api/projects/{projectId}/progress [get]
func (h *TaskHandler) Progress(c *gin.Context) {
	log := h.log.WithField("operation", "handlers.TaskHandler.Progress")

	projectID, ok := pathParam(c, "projectId")
	if !ok {
		respondError(c, http.StatusBadRequest, "projectId is required", "projectId")
		return
	}
	p, err := h.service.Progress(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, log, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}
