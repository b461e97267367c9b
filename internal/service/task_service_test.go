package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweep-app/sweep-api/internal/models"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
)

type stubTaskRepo struct {
	tasks   map[int64]*models.JobTask
	nextID  int64
	deleted []int64
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{tasks: make(map[int64]*models.JobTask)}
}

func (s *stubTaskRepo) List(_ context.Context, filter models.TaskFilter) ([]models.JobTask, int, error) {
	var out []models.JobTask
	for _, task := range s.tasks {
		if filter.FieldID != nil && task.FieldID != *filter.FieldID {
			continue
		}
		out = append(out, *task)
	}
	return out, len(out), nil
}

func (s *stubTaskRepo) FindByID(_ context.Context, id int64) (*models.JobTask, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (s *stubTaskRepo) Create(_ context.Context, task *models.JobTask) error {
	s.nextID++
	task.ID = s.nextID
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *stubTaskRepo) Update(_ context.Context, task *models.JobTask) error {
	if _, ok := s.tasks[task.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *stubTaskRepo) Delete(_ context.Context, id int64) error {
	if _, ok := s.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.tasks, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubFieldReader struct {
	fields map[int64]*models.Field
}

func (s *stubFieldReader) FindByID(_ context.Context, id int64) (*models.Field, error) {
	field, ok := s.fields[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return field, nil
}

type stubAssignmentChecker struct {
	referenced map[int64]bool
}

func (s *stubAssignmentChecker) ExistsForTask(_ context.Context, taskID int64) (bool, error) {
	return s.referenced[taskID], nil
}

func newTaskService(repo *stubTaskRepo, checker *stubAssignmentChecker) *TaskService {
	fields := &stubFieldReader{fields: map[int64]*models.Field{1: {ID: 1, Name: "Software"}}}
	cacheSvc := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	return NewTaskService(repo, fields, checker, cacheSvc, nil, zap.NewNop())
}

func validTaskRequest() CreateTaskRequest {
	return CreateTaskRequest{
		Title:       "Label images",
		Description: "Label 500 images for a vision model",
		Deadline:    time.Now().Add(48 * time.Hour),
		Complexity:  "MEDIUM",
		FieldID:     1,
	}
}

func TestTaskCreate(t *testing.T) {
	repo := newStubTaskRepo()
	svc := newTaskService(repo, &stubAssignmentChecker{})
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	task, err := svc.Create(context.Background(), employer, validTaskRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.EmployerUserID)
	assert.Equal(t, models.ComplexityMedium, task.Complexity)
	assert.Equal(t, 100, task.Complexity.SuggestedTokens())
}

func TestTaskCreatePastDeadline(t *testing.T) {
	repo := newStubTaskRepo()
	svc := newTaskService(repo, &stubAssignmentChecker{})
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	req := validTaskRequest()
	req.Deadline = time.Now().Add(-time.Hour)
	_, err := svc.Create(context.Background(), employer, req)
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestTaskCreateUnknownField(t *testing.T) {
	repo := newStubTaskRepo()
	svc := newTaskService(repo, &stubAssignmentChecker{})
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	req := validTaskRequest()
	req.FieldID = 99
	_, err := svc.Create(context.Background(), employer, req)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestTaskUpdateOwnership(t *testing.T) {
	repo := newStubTaskRepo()
	svc := newTaskService(repo, &stubAssignmentChecker{})
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	task, err := svc.Create(context.Background(), employer, validTaskRequest())
	require.NoError(t, err)

	other := Actor{UserID: 2, Role: models.RoleEmployer}
	update := UpdateTaskRequest(validTaskRequest())
	_, err = svc.Update(context.Background(), other, task.ID, update)
	assertAppError(t, err, appErrors.ErrForbidden.Code)

	update.Title = "Label more images"
	updated, err := svc.Update(context.Background(), employer, task.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Label more images", updated.Title)
}

func TestTaskDeleteBlockedByAssignments(t *testing.T) {
	repo := newStubTaskRepo()
	checker := &stubAssignmentChecker{referenced: map[int64]bool{}}
	svc := newTaskService(repo, checker)
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	task, err := svc.Create(context.Background(), employer, validTaskRequest())
	require.NoError(t, err)

	checker.referenced[task.ID] = true
	err = svc.Delete(context.Background(), employer, task.ID)
	assertAppError(t, err, appErrors.ErrConflict.Code)

	checker.referenced[task.ID] = false
	require.NoError(t, svc.Delete(context.Background(), employer, task.ID))
	assert.Equal(t, []int64{task.ID}, repo.deleted)
}
