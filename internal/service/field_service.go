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

type fieldRepository interface {
	List(ctx context.Context) ([]models.Field, error)
	FindByID(ctx context.Context, id int64) (*models.Field, error)
	Create(ctx context.Context, field *models.Field) error
	Rename(ctx context.Context, id int64, name string) error
}

// CreateFieldRequest registers a new subject-matter field.
type CreateFieldRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// FieldService serves the field registry.
type FieldService struct {
	repo      fieldRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFieldService constructs a FieldService.
func NewFieldService(repo fieldRepository, validate *validator.Validate, logger *zap.Logger) *FieldService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldService{repo: repo, validator: validate, logger: logger}
}

// List returns all fields.
func (s *FieldService) List(ctx context.Context) ([]models.Field, error) {
	fields, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fields")
	}
	return fields, nil
}

// Get returns a field by id.
func (s *FieldService) Get(ctx context.Context, id int64) (*models.Field, error) {
	field, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "field not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load field")
	}
	return field, nil
}

// Create registers a field.
func (s *FieldService) Create(ctx context.Context, req CreateFieldRequest) (*models.Field, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field payload")
	}
	field := &models.Field{Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, field); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create field")
	}
	return field, nil
}

// Rename updates a field's name.
func (s *FieldService) Rename(ctx context.Context, id int64, req CreateFieldRequest) (*models.Field, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field payload")
	}
	if err := s.repo.Rename(ctx, id, strings.TrimSpace(req.Name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "field not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename field")
	}
	return s.Get(ctx, id)
}
