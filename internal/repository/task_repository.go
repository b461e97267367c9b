package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sweep-app/sweep-api/internal/models"
)

// TaskRepository persists employer task postings.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns tasks matching the filter plus the unpaged total.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.JobTask, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	next := func() string {
		p := "$" + strconv.Itoa(idx)
		idx++
		return p
	}

	if filter.FieldID != nil {
		where += " AND field_id = " + next()
		args = append(args, *filter.FieldID)
	}
	if filter.EmployerUserID != nil {
		where += " AND employer_user_id = " + next()
		args = append(args, *filter.EmployerUserID)
	}
	if filter.OpenOnly {
		where += " AND deadline > " + next()
		args = append(args, time.Now().UTC())
	}
	if filter.Search != "" {
		p := next()
		where += " AND (title ILIKE " + p + " OR description ILIKE " + p + ")"
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM job_tasks"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	query := `
SELECT id, employer_user_id, title, description, deadline, requires_experience, complexity, monetary_compensation, field_id, created_at, updated_at
FROM job_tasks` + where + " ORDER BY deadline ASC LIMIT " + next() + " OFFSET " + next()
	args = append(args, size, (page-1)*size)

	var tasks []models.JobTask
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// FindByID loads a single task.
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*models.JobTask, error) {
	const query = `
SELECT id, employer_user_id, title, description, deadline, requires_experience, complexity, monetary_compensation, field_id, created_at, updated_at
FROM job_tasks WHERE id = $1`
	var task models.JobTask
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// Create inserts a new task posting.
func (r *TaskRepository) Create(ctx context.Context, task *models.JobTask) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	const query = `
INSERT INTO job_tasks (employer_user_id, title, description, deadline, requires_experience, complexity, monetary_compensation, field_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		task.EmployerUserID, task.Title, task.Description, task.Deadline,
		task.RequiresExperience, task.Complexity, task.MonetaryCompensation,
		task.FieldID, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update rewrites mutable content fields of an owned task.
func (r *TaskRepository) Update(ctx context.Context, task *models.JobTask) error {
	task.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE job_tasks
SET title = $1, description = $2, deadline = $3, requires_experience = $4, complexity = $5, monetary_compensation = $6, field_id = $7, updated_at = $8
WHERE id = $9`
	result, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Deadline, task.RequiresExperience,
		task.Complexity, task.MonetaryCompensation, task.FieldID, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated task rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a task. The FK from task_assignments is restrict-on-delete;
// callers check ExistsForTask first so this surfaces as a clean conflict.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM job_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted task rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
