package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sweep-app/sweep-api/internal/models"
)

// ExportRepository persists assignment-report export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a queued export job.
func (r *ExportRepository) Create(ctx context.Context, export *models.AssignmentExport) error {
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO assignment_exports (id, user_id, role, format, status, created_at)
VALUES (:id, :user_id, :role, :format, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, export); err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	return nil
}

// FindByID loads an export job.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.AssignmentExport, error) {
	const query = `
SELECT id, user_id, role, format, status, result_url, error_message, created_at, finished_at
FROM assignment_exports WHERE id = $1`
	var export models.AssignmentExport
	if err := r.db.GetContext(ctx, &export, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export: %w", err)
	}
	return &export, nil
}

// SetStatus updates just the status column.
func (r *ExportRepository) SetStatus(ctx context.Context, id string, status models.ExportStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE assignment_exports SET status = $1 WHERE id = $2`, status, id); err != nil {
		return fmt.Errorf("set export status: %w", err)
	}
	return nil
}

// MarkFinished records a successful render and its download URL.
func (r *ExportRepository) MarkFinished(ctx context.Context, id, resultURL string, at time.Time) error {
	const query = `
UPDATE assignment_exports SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, models.ExportStatusFinished, resultURL, at, id); err != nil {
		return fmt.Errorf("finish export: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure.
func (r *ExportRepository) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	const query = `
UPDATE assignment_exports SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, models.ExportStatusFailed, message, at, id); err != nil {
		return fmt.Errorf("fail export: %w", err)
	}
	return nil
}
