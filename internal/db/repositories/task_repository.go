// task_repository.go implements TaskRepository, providing database queries for
// compliance tasks. All queries are scoped by organization ID.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/compai/comp-api/internal/db/models"
)

// TaskRepository handles task database operations
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New().String()
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `
		INSERT INTO tasks (id, organization_id, title, description, status, entity_type, entity_id, assignee_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.OrganizationID,
		task.Title,
		task.Description,
		task.Status,
		task.EntityType,
		task.EntityID,
		task.AssigneeID,
		task.DueAt,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task within an organization. Returns (nil, nil) when not
// found.
func (r *TaskRepository) GetByID(ctx context.Context, orgID, id string) (*models.Task, error) {
	query := `
		SELECT id, organization_id, title, description, status, entity_type, entity_id, assignee_id, due_at, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND organization_id = $2
	`

	task := &models.Task{}
	err := r.db.GetContext(ctx, task, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListByOrganization returns all tasks for an organization, newest first.
func (r *TaskRepository) ListByOrganization(ctx context.Context, orgID string) ([]models.Task, error) {
	query := `
		SELECT id, organization_id, title, description, status, entity_type, entity_id, assignee_id, due_at, created_at, updated_at
		FROM tasks
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// ListByEntity returns tasks attached to a specific risk or vendor.
func (r *TaskRepository) ListByEntity(ctx context.Context, orgID, entityType, entityID string) ([]models.Task, error) {
	query := `
		SELECT id, organization_id, title, description, status, entity_type, entity_id, assignee_id, due_at, created_at, updated_at
		FROM tasks
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC
	`

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, orgID, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list tasks by entity: %w", err)
	}
	return tasks, nil
}

// Update applies changes to a task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, assignee_id = $6, due_at = $7, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.OrganizationID,
		task.Title,
		task.Description,
		task.Status,
		task.AssigneeID,
		task.DueAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM tasks WHERE id = $1 AND organization_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
