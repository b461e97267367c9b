package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sweep-app/sweep-api/internal/models"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
)

type profileRepository interface {
	FindStudent(ctx context.Context, userID int64) (*models.StudentProfile, error)
	FindEmployer(ctx context.Context, userID int64) (*models.EmployerProfile, error)
	UpsertStudent(ctx context.Context, profile *models.StudentProfile) error
	UpsertEmployer(ctx context.Context, profile *models.EmployerProfile) error
}

type profileFieldReader interface {
	FindByID(ctx context.Context, id int64) (*models.Field, error)
}

// UpsertStudentProfileRequest creates or updates the caller's student
// profile. The token balance is never writable through this path.
type UpsertStudentProfileRequest struct {
	FieldID              int64    `json:"field_id" validate:"required,gt=0"`
	PriorExperienceYears int      `json:"prior_experience_years" validate:"gte=0,lte=60"`
	CGPA                 *float64 `json:"cgpa" validate:"omitempty,gte=0,lte=4"`
}

// UpsertEmployerProfileRequest creates or updates the caller's employer
// profile.
type UpsertEmployerProfileRequest struct {
	Organization string `json:"organization" validate:"required,max=200"`
}

// ProfileService manages student and employer profiles.
type ProfileService struct {
	repo      profileRepository
	fields    profileFieldReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, fields profileFieldReader, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, fields: fields, validator: validate, logger: logger}
}

// GetStudent returns a student profile by user id.
func (s *ProfileService) GetStudent(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	profile, err := s.repo.FindStudent(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

// GetEmployer returns an employer profile by user id.
func (s *ProfileService) GetEmployer(ctx context.Context, userID int64) (*models.EmployerProfile, error) {
	profile, err := s.repo.FindEmployer(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employer profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employer profile")
	}
	return profile, nil
}

// UpsertStudent creates or updates the caller's student profile. Only
// users with the student role hold one.
func (s *ProfileService) UpsertStudent(ctx context.Context, actor Actor, req UpsertStudentProfileRequest) (*models.StudentProfile, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have a student profile")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if _, err := s.fields.FindByID(ctx, req.FieldID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "field not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load field")
	}

	profile := &models.StudentProfile{
		UserID:               actor.UserID,
		FieldID:              req.FieldID,
		PriorExperienceYears: req.PriorExperienceYears,
		CGPA:                 req.CGPA,
	}
	if err := s.repo.UpsertStudent(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student profile")
	}
	return profile, nil
}

// UpsertEmployer creates or updates the caller's employer profile.
func (s *ProfileService) UpsertEmployer(ctx context.Context, actor Actor, req UpsertEmployerProfileRequest) (*models.EmployerProfile, error) {
	if actor.Role != models.RoleEmployer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only employers have an employer profile")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile := &models.EmployerProfile{
		UserID:       actor.UserID,
		Organization: strings.TrimSpace(req.Organization),
	}
	if err := s.repo.UpsertEmployer(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save employer profile")
	}
	return profile, nil
}
