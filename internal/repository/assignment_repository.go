package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sweep-app/sweep-api/internal/models"
)

// Sentinel errors surfaced by the assignment repository. Services map
// them onto the API error taxonomy.
var (
	// ErrDuplicatePair is returned when the (task, student) unique index
	// rejects an insert.
	ErrDuplicatePair = errors.New("assignment pair already exists")
	// ErrStateChanged is returned when a status-guarded update matched no
	// row, i.e. a concurrent transition won the race.
	ErrStateChanged = errors.New("assignment state changed")
)

const pqUniqueViolation = "23505"

const assignmentDetailColumns = `
a.id, a.task_id, a.student_user_id, a.status,
a.requested_at, a.accepted_at, a.completed_at, a.approved_at, a.tokens_awarded,
t.title AS task_title, t.deadline AS task_deadline, t.complexity AS task_complexity,
t.employer_user_id, u.full_name AS student_name`

// AssignmentRepository persists task assignments and their transitions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID loads a bare assignment row.
func (r *AssignmentRepository) FindByID(ctx context.Context, id int64) (*models.TaskAssignment, error) {
	const query = `
SELECT id, task_id, student_user_id, status, requested_at, accepted_at, completed_at, approved_at, tokens_awarded
FROM task_assignments WHERE id = $1`
	var assignment models.TaskAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// FindDetailByID loads an assignment joined with its task and student,
// used by the transition guards to verify ownership.
func (r *AssignmentRepository) FindDetailByID(ctx context.Context, id int64) (*models.AssignmentDetail, error) {
	query := `
SELECT ` + assignmentDetailColumns + `
FROM task_assignments a
JOIN job_tasks t ON t.id = a.task_id
JOIN users u ON u.id = a.student_user_id
WHERE a.id = $1`
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment detail: %w", err)
	}
	return &detail, nil
}

// Create inserts a REQUESTED assignment. The unique index on
// (task_id, student_user_id) is the authoritative duplicate guard; a
// unique violation maps to ErrDuplicatePair.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.TaskAssignment) error {
	if assignment.RequestedAt.IsZero() {
		assignment.RequestedAt = time.Now().UTC()
	}
	assignment.Status = models.AssignmentRequested
	const query = `
INSERT INTO task_assignments (task_id, student_user_id, status, requested_at)
VALUES ($1, $2, $3, $4)
RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		assignment.TaskID, assignment.StudentUserID, assignment.Status, assignment.RequestedAt,
	).Scan(&assignment.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicatePair
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment row (reject / unassign).
func (r *AssignmentRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM task_assignments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAccepted transitions REQUESTED -> ACCEPTED. The status guard in the
// WHERE clause serializes concurrent transitions on the same row.
func (r *AssignmentRepository) MarkAccepted(ctx context.Context, id int64, at time.Time) error {
	const query = `
UPDATE task_assignments SET status = $1, accepted_at = $2
WHERE id = $3 AND status = $4`
	return r.guardedTransition(ctx, query, models.AssignmentAccepted, at, id, models.AssignmentRequested)
}

// MarkCompleted transitions ACCEPTED -> COMPLETED.
func (r *AssignmentRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	const query = `
UPDATE task_assignments SET status = $1, completed_at = $2
WHERE id = $3 AND status = $4`
	return r.guardedTransition(ctx, query, models.AssignmentCompleted, at, id, models.AssignmentAccepted)
}

func (r *AssignmentRepository) guardedTransition(ctx context.Context, query string, to models.AssignmentStatus, at time.Time, id int64, from models.AssignmentStatus) error {
	result, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return fmt.Errorf("transition assignment to %s: %w", to, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if affected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Approve runs the COMPLETED -> APPROVED transition and the token-balance
// increment as one transaction. The row lock plus the status guard
// guarantee exactly one award per assignment; the balance update is an
// atomic increment, never a read-modify-write. Returns the new balance.
func (r *AssignmentRepository) Approve(ctx context.Context, id int64, tokens int, at time.Time) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current struct {
		Status        models.AssignmentStatus `db:"status"`
		StudentUserID int64                   `db:"student_user_id"`
	}
	const lockQuery = `SELECT status, student_user_id FROM task_assignments WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("lock assignment: %w", err)
	}
	if current.Status != models.AssignmentCompleted {
		return 0, ErrStateChanged
	}

	const approveQuery = `
UPDATE task_assignments SET status = $1, approved_at = $2, tokens_awarded = $3
WHERE id = $4 AND status = $5`
	result, err := tx.ExecContext(ctx, approveQuery, models.AssignmentApproved, at, tokens, id, models.AssignmentCompleted)
	if err != nil {
		return 0, fmt.Errorf("approve assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check approved rows: %w", err)
	}
	if affected == 0 {
		return 0, ErrStateChanged
	}

	var balance int
	const awardQuery = `
UPDATE student_profiles SET token_balance = token_balance + $1, updated_at = $2
WHERE user_id = $3
RETURNING token_balance`
	if err := tx.QueryRowxContext(ctx, awardQuery, tokens, at, current.StudentUserID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("award tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit approve tx: %w", err)
	}
	return balance, nil
}

// ListByEmployer returns assignments on the employer's tasks, optionally
// narrowed to a single task.
func (r *AssignmentRepository) ListByEmployer(ctx context.Context, employerUserID int64, taskID *int64) ([]models.AssignmentDetail, error) {
	query := `
SELECT ` + assignmentDetailColumns + `
FROM task_assignments a
JOIN job_tasks t ON t.id = a.task_id
JOIN users u ON u.id = a.student_user_id
WHERE t.employer_user_id = $1`
	args := []interface{}{employerUserID}
	if taskID != nil {
		query += ` AND a.task_id = $2`
		args = append(args, *taskID)
	}
	query += ` ORDER BY a.requested_at DESC`

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list employer assignments: %w", err)
	}
	return assignments, nil
}

// ListByStudent returns the student's own assignments, optionally
// filtered by completion.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentUserID int64, filter models.StudentAssignmentFilter) ([]models.AssignmentDetail, error) {
	query := `
SELECT ` + assignmentDetailColumns + `
FROM task_assignments a
JOIN job_tasks t ON t.id = a.task_id
JOIN users u ON u.id = a.student_user_id
WHERE a.student_user_id = $1`
	args := []interface{}{studentUserID}
	if filter.Completed != nil {
		if *filter.Completed {
			query += ` AND a.completed_at IS NOT NULL`
		} else {
			query += ` AND a.completed_at IS NULL`
		}
	}
	query += ` ORDER BY a.requested_at DESC`

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return assignments, nil
}

// ExistsForTask reports whether any assignment references the task.
// Task deletion is restricted while this holds.
func (r *AssignmentRepository) ExistsForTask(ctx context.Context, taskID int64) (bool, error) {
	const query = `SELECT 1 FROM task_assignments WHERE task_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, taskID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check task assignments: %w", err)
	}
	return true, nil
}
