package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sweep-app/sweep-api/internal/models"
)

// ProfileRepository persists student and employer profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindStudent loads a student profile by user id.
func (r *ProfileRepository) FindStudent(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	const query = `
SELECT user_id, field_id, token_balance, prior_experience_years, cgpa, created_at, updated_at
FROM student_profiles WHERE user_id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}

// FindEmployer loads an employer profile by user id.
func (r *ProfileRepository) FindEmployer(ctx context.Context, userID int64) (*models.EmployerProfile, error) {
	const query = `
SELECT user_id, organization, created_at, updated_at
FROM employer_profiles WHERE user_id = $1`
	var profile models.EmployerProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employer profile: %w", err)
	}
	return &profile, nil
}

// UpsertStudent creates or updates the student profile for a user.
// token_balance is never written here; only the approval transaction
// touches it.
func (r *ProfileRepository) UpsertStudent(ctx context.Context, profile *models.StudentProfile) error {
	now := time.Now().UTC()
	profile.UpdatedAt = now
	const query = `
INSERT INTO student_profiles (user_id, field_id, token_balance, prior_experience_years, cgpa, created_at, updated_at)
VALUES ($1, $2, 0, $3, $4, $5, $5)
ON CONFLICT (user_id) DO UPDATE
SET field_id = EXCLUDED.field_id,
    prior_experience_years = EXCLUDED.prior_experience_years,
    cgpa = EXCLUDED.cgpa,
    updated_at = EXCLUDED.updated_at
RETURNING token_balance, created_at`
	err := r.db.QueryRowxContext(ctx, query,
		profile.UserID, profile.FieldID, profile.PriorExperienceYears, profile.CGPA, now,
	).Scan(&profile.TokenBalance, &profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert student profile: %w", err)
	}
	return nil
}

// UpsertEmployer creates or updates the employer profile for a user.
func (r *ProfileRepository) UpsertEmployer(ctx context.Context, profile *models.EmployerProfile) error {
	now := time.Now().UTC()
	profile.UpdatedAt = now
	const query = `
INSERT INTO employer_profiles (user_id, organization, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (user_id) DO UPDATE
SET organization = EXCLUDED.organization, updated_at = EXCLUDED.updated_at
RETURNING created_at`
	if err := r.db.QueryRowxContext(ctx, query, profile.UserID, profile.Organization, now).Scan(&profile.CreatedAt); err != nil {
		return fmt.Errorf("upsert employer profile: %w", err)
	}
	return nil
}

// ListAvailableStudents returns students eligible for a task: matching
// field, experienced when the task demands it, and without an existing
// assignment for the task.
func (r *ProfileRepository) ListAvailableStudents(ctx context.Context, task *models.JobTask) ([]models.AvailableStudent, error) {
	query := `
SELECT sp.user_id, u.full_name, u.email, sp.field_id, sp.prior_experience_years, sp.cgpa
FROM student_profiles sp
JOIN users u ON u.id = sp.user_id
WHERE u.active = TRUE
  AND sp.field_id = $1
  AND NOT EXISTS (
    SELECT 1 FROM task_assignments a
    WHERE a.task_id = $2 AND a.student_user_id = sp.user_id
  )`
	args := []interface{}{task.FieldID, task.ID}
	if task.RequiresExperience {
		query += ` AND sp.prior_experience_years > 0`
	}
	query += ` ORDER BY u.full_name ASC`

	var students []models.AvailableStudent
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list available students: %w", err)
	}
	return students, nil
}
