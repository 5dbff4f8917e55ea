// internal/services/task_service.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

// TaskService validates task mutations and persists them.
type TaskService interface {
	Create(ctx context.Context, draft models.TaskDraft) (*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	UpdateStatus(ctx context.Context, id string, to models.TaskStatus) (*models.Task, error)
	Delete(ctx context.Context, id string) (*models.Task, error)
	Progress(ctx context.Context, projectID string) (models.ProjectProgress, error)
}

type TaskServiceConfig struct {
	// StoreTimeout bounds every store call; zero means no bound.
	StoreTimeout time.Duration
	// Location decides which calendar day "today" is for due-date checks.
	Location *time.Location
	Now      func() time.Time
}

type taskService struct {
	repo    repositories.TaskRepository
	log     *logrus.Entry
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(repo repositories.TaskRepository, log *logrus.Entry, cfg TaskServiceConfig) TaskService {
	s := &taskService{
		repo:    repo,
		log:     log,
		timeout: cfg.StoreTimeout,
		loc:     cfg.Location,
		now:     cfg.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type clientLocationKey struct{}

// WithClientLocation makes due-date checks under ctx use the caller's calendar
// day instead of the configured location.
func WithClientLocation(ctx context.Context, loc *time.Location) context.Context {
	if loc == nil {
		return ctx
	}
	return context.WithValue(ctx, clientLocationKey{}, loc)
}

func (s *taskService) today(ctx context.Context) models.Date {
	loc := s.loc
	if l, ok := ctx.Value(clientLocationKey{}).(*time.Location); ok {
		loc = l
	}
	return models.DateOf(s.now().In(loc))
}

func (s *taskService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *taskService) Create(ctx context.Context, draft models.TaskDraft) (*models.Task, error) {
	const op = "services.TaskService.Create"
	log := s.log.WithField("operation", op)

	draft, err := ValidateCreate(draft, s.today(ctx))
	if err != nil {
		log.WithError(err).Debug("rejected draft")
		return nil, err
	}

	task := &models.Task{
		ProjectID:   draft.ProjectID,
		OwnerID:     draft.OwnerID,
		Title:       draft.Title,
		Description: draft.Description,
		Status:      models.StatusTodo,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.Create(ctx, task); err != nil {
		log.WithError(err).Error("persist task")
		return nil, err
	}
	log.WithFields(logrus.Fields{"task": task.ID, "project": task.ProjectID}).Info("task created")
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.FindByID(ctx, id)
}

func (s *taskService) ListByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.ListByProject(ctx, projectID)
}

func (s *taskService) ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *taskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	const op = "services.TaskService.Update"
	log := s.log.WithFields(logrus.Fields{"operation": op, "task": id})

	if patch.Empty() {
		return nil, invalid("task", "no fields to update")
	}
	patch, err := ValidateUpdate(patch, s.today(ctx))
	if err != nil {
		log.WithError(err).Debug("rejected patch")
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, ValidateTransition("", *patch.Status)
		}
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := ValidateTransition(current.Status, *patch.Status); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if IsStoreError(err) {
			log.WithError(err).Error("persist update")
		}
		return nil, err
	}
	log.WithField("status", updated.Status).Info("task updated")
	return updated, nil
}

func (s *taskService) UpdateStatus(ctx context.Context, id string, to models.TaskStatus) (*models.Task, error) {
	return s.Update(ctx, id, models.TaskPatch{Status: &to})
}

// Delete returns the removed task so callers can address the room it lived in.
func (s *taskService) Delete(ctx context.Context, id string) (*models.Task, error) {
	const op = "services.TaskService.Delete"
	log := s.log.WithFields(logrus.Fields{"operation": op, "task": id})

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if IsStoreError(err) {
			log.WithError(err).Error("persist delete")
		}
		return nil, err
	}
	log.WithField("project", deleted.ProjectID).Info("task deleted")
	return deleted, nil
}

func (s *taskService) Progress(ctx context.Context, projectID string) (models.ProjectProgress, error) {
	tasks, err := s.ListByProject(ctx, projectID)
	if err != nil {
		return models.ProjectProgress{}, err
	}
	return models.ProgressOf(projectID, tasks), nil
}
