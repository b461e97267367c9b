package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sweep-app/sweep-api/internal/models"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
)

type taskRepository interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.JobTask, int, error)
	FindByID(ctx context.Context, id int64) (*models.JobTask, error)
	Create(ctx context.Context, task *models.JobTask) error
	Update(ctx context.Context, task *models.JobTask) error
	Delete(ctx context.Context, id int64) error
}

type taskFieldReader interface {
	FindByID(ctx context.Context, id int64) (*models.Field, error)
}

type taskAssignmentChecker interface {
	ExistsForTask(ctx context.Context, taskID int64) (bool, error)
}

// CreateTaskRequest is the employer payload for posting a task.
type CreateTaskRequest struct {
	Title                string    `json:"title" validate:"required,max=200"`
	Description          string    `json:"description" validate:"required"`
	Deadline             time.Time `json:"deadline" validate:"required"`
	RequiresExperience   bool      `json:"requires_experience"`
	Complexity           string    `json:"complexity" validate:"required,oneof=LOW MEDIUM HIGH"`
	MonetaryCompensation *float64  `json:"monetary_compensation" validate:"omitempty,gte=0"`
	FieldID              int64     `json:"field_id" validate:"required,gt=0"`
}

// UpdateTaskRequest rewrites a task's mutable content.
type UpdateTaskRequest struct {
	Title                string    `json:"title" validate:"required,max=200"`
	Description          string    `json:"description" validate:"required"`
	Deadline             time.Time `json:"deadline" validate:"required"`
	RequiresExperience   bool      `json:"requires_experience"`
	Complexity           string    `json:"complexity" validate:"required,oneof=LOW MEDIUM HIGH"`
	MonetaryCompensation *float64  `json:"monetary_compensation" validate:"omitempty,gte=0"`
	FieldID              int64     `json:"field_id" validate:"required,gt=0"`
}

// TaskService orchestrates the job task catalog.
type TaskService struct {
	repo        taskRepository
	fields      taskFieldReader
	assignments taskAssignmentChecker
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(repo taskRepository, fields taskFieldReader, assignments taskAssignmentChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{repo: repo, fields: fields, assignments: assignments, cache: cache, validator: validate, logger: logger}
}

// List returns tasks plus pagination data.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.JobTask, *models.Pagination, error) {
	tasks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return tasks, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, id int64) (*models.JobTask, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}

// Create posts a new task owned by the calling employer. The deadline
// must be in the future.
func (s *TaskService) Create(ctx context.Context, actor Actor, req CreateTaskRequest) (*models.JobTask, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if !req.Deadline.After(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be in the future")
	}
	if _, err := s.fields.FindByID(ctx, req.FieldID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "field not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load field")
	}

	task := &models.JobTask{
		EmployerUserID:       actor.UserID,
		Title:                strings.TrimSpace(req.Title),
		Description:          strings.TrimSpace(req.Description),
		Deadline:             req.Deadline.UTC(),
		RequiresExperience:   req.RequiresExperience,
		Complexity:           models.Complexity(req.Complexity),
		MonetaryCompensation: req.MonetaryCompensation,
		FieldID:              req.FieldID,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	s.cache.Invalidate(ctx, availableStudentsCachePattern)
	return task, nil
}

// Update modifies an owned task's content fields.
func (s *TaskService) Update(ctx context.Context, actor Actor, id int64, req UpdateTaskRequest) (*models.JobTask, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.EmployerUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "task belongs to another employer")
	}

	task.Title = strings.TrimSpace(req.Title)
	task.Description = strings.TrimSpace(req.Description)
	task.Deadline = req.Deadline.UTC()
	task.RequiresExperience = req.RequiresExperience
	task.Complexity = models.Complexity(req.Complexity)
	task.MonetaryCompensation = req.MonetaryCompensation
	task.FieldID = req.FieldID

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}
	s.cache.Invalidate(ctx, availableStudentsCachePattern)
	return task, nil
}

// Delete removes an owned task. Tasks with assignments cannot be
// deleted; remove the assignments first.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id int64) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.EmployerUserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "task belongs to another employer")
	}

	referenced, err := s.assignments.ExistsForTask(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check task assignments")
	}
	if referenced {
		return appErrors.Clone(appErrors.ErrConflict, "task has assignments and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	s.cache.Invalidate(ctx, availableStudentsCachePattern)
	return nil
}
