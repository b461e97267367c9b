package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sweep-app/sweep-api/internal/models"
)

// FieldRepository persists the subject-matter field registry.
type FieldRepository struct {
	db *sqlx.DB
}

// NewFieldRepository constructs the repository.
func NewFieldRepository(db *sqlx.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

// List returns all fields ordered by name.
func (r *FieldRepository) List(ctx context.Context) ([]models.Field, error) {
	const query = `SELECT id, name, created_at FROM fields ORDER BY name ASC`
	var fields []models.Field
	if err := r.db.SelectContext(ctx, &fields, query); err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return fields, nil
}

// FindByID loads one field.
func (r *FieldRepository) FindByID(ctx context.Context, id int64) (*models.Field, error) {
	const query = `SELECT id, name, created_at FROM fields WHERE id = $1`
	var field models.Field
	if err := r.db.GetContext(ctx, &field, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find field: %w", err)
	}
	return &field, nil
}

// Create inserts a new field.
func (r *FieldRepository) Create(ctx context.Context, field *models.Field) error {
	if field.CreatedAt.IsZero() {
		field.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fields (name, created_at) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, field.Name, field.CreatedAt).Scan(&field.ID); err != nil {
		return fmt.Errorf("create field: %w", err)
	}
	return nil
}

// Rename updates a field's name.
func (r *FieldRepository) Rename(ctx context.Context, id int64, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE fields SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("rename field: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check renamed field rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
