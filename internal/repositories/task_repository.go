package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taskboard/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id string) (*models.Task, error)
}

const taskColumns = `id, project_id, owner_id, title, description, status, priority,
	due_date, created_at, updated_at`

type taskRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepository{db: db, now: time.Now}
}

func (r *taskRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// Create assigns the id and both timestamps, then inserts the row.
func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	task.ID = uuid.NewString()
	now := r.timestamp()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.ProjectID, task.OwnerID, task.Title, task.Description,
		task.Status, task.Priority, task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	return storeErr("create", err)
}

func (r *taskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	task, err := findTask(ctx, r.db, r.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	return task, storeErr("get", err)
}

func (r *taskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`

	conditions := []string{}
	args := []interface{}{}

	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.OwnerID != nil {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	baseQuery += " ORDER BY created_at ASC, id ASC"

	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, r.db.Rebind(baseQuery), args...); err != nil {
		return nil, storeErr("list", err)
	}
	return tasks, nil
}

func (r *taskRepository) ListByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return r.FindAll(ctx, models.TaskFilter{ProjectID: &projectID})
}

func (r *taskRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	return r.FindAll(ctx, models.TaskFilter{OwnerID: &ownerID})
}

// Update applies patch to the stored row and bumps updated_at.
// Concurrent updates to the same task serialize on the row; the last commit wins.
func (r *taskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storeErr("update", err)
	}
	defer tx.Rollback()

	selectQuery := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	if r.db.DriverName() == DriverPostgres {
		selectQuery += " FOR UPDATE"
	}
	current, err := findTask(ctx, tx, tx.Rebind(selectQuery), id)
	if err != nil {
		return nil, storeErr("update", err)
	}

	updated := patch.Apply(*current)
	updated.UpdatedAt = r.timestamp()

	query := tx.Rebind(`
		UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query,
		updated.Title, updated.Description, updated.Status, updated.Priority,
		updated.DueDate, updated.UpdatedAt, id,
	); err != nil {
		return nil, storeErr("update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("update", err)
	}
	return &updated, nil
}

// Delete removes the row and returns its last value.
func (r *taskRepository) Delete(ctx context.Context, id string) (*models.Task, error) {
	task, err := findTask(ctx, r.db,
		r.db.Rebind(`DELETE FROM tasks WHERE id = ? RETURNING `+taskColumns), id)
	return task, storeErr("delete", err)
}

func findTask(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Task, error) {
	task := &models.Task{}
	if err := sqlx.GetContext(ctx, q, task, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}
