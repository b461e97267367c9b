package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/repository"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/jobs"
)

// Actor is the authenticated caller of an operation. Ownership is always
// re-checked against it inside the operation, never trusted from the
// request body.
type Actor struct {
	UserID int64
	Role   models.UserRole
}

const availableStudentsCachePattern = "sweep:students:task:*"

func availableStudentsCacheKey(taskID int64) string {
	return fmt.Sprintf("sweep:students:task:%d", taskID)
}

type assignmentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.TaskAssignment, error)
	FindDetailByID(ctx context.Context, id int64) (*models.AssignmentDetail, error)
	Create(ctx context.Context, assignment *models.TaskAssignment) error
	Delete(ctx context.Context, id int64) error
	MarkAccepted(ctx context.Context, id int64, at time.Time) error
	MarkCompleted(ctx context.Context, id int64, at time.Time) error
	Approve(ctx context.Context, id int64, tokens int, at time.Time) (int, error)
	ListByEmployer(ctx context.Context, employerUserID int64, taskID *int64) ([]models.AssignmentDetail, error)
	ListByStudent(ctx context.Context, studentUserID int64, filter models.StudentAssignmentFilter) ([]models.AssignmentDetail, error)
}

type assignmentTaskReader interface {
	FindByID(ctx context.Context, id int64) (*models.JobTask, error)
}

type assignmentProfileReader interface {
	FindStudent(ctx context.Context, userID int64) (*models.StudentProfile, error)
	ListAvailableStudents(ctx context.Context, task *models.JobTask) ([]models.AvailableStudent, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateAssignmentRequest proposes a task to a student (or the student
// requests it for themselves).
type CreateAssignmentRequest struct {
	TaskID        int64 `json:"task_id" validate:"required,gt=0"`
	StudentUserID int64 `json:"student_user_id" validate:"required,gt=0"`
}

// ApproveAssignmentRequest awards tokens for a completed assignment. An
// omitted award falls back to the task complexity's suggestion.
type ApproveAssignmentRequest struct {
	TokensAwarded int `json:"tokens_awarded"`
}

// ApprovalResult is the approve response: the assignment plus the
// student's new balance.
type ApprovalResult struct {
	Assignment   models.TaskAssignment `json:"assignment"`
	TokenBalance int                   `json:"token_balance"`
}

// AssignmentService is the assignment lifecycle engine. Every transition
// re-checks caller ownership and the current state before mutating.
type AssignmentService struct {
	assignments assignmentRepository
	tasks       assignmentTaskReader
	profiles    assignmentProfileReader
	audit       auditWriter
	cache       *CacheService
	metrics     *MetricsService
	events      *jobs.Queue
	validator   *validator.Validate
	logger      *zap.Logger
	minAward    int
	maxAward    int
}

// NewAssignmentService constructs the lifecycle engine.
func NewAssignmentService(
	assignments assignmentRepository,
	tasks assignmentTaskReader,
	profiles assignmentProfileReader,
	audit auditWriter,
	cache *CacheService,
	metrics *MetricsService,
	events *jobs.Queue,
	validate *validator.Validate,
	logger *zap.Logger,
	minAward, maxAward int,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minAward <= 0 {
		minAward = 1
	}
	if maxAward <= 0 {
		maxAward = 500
	}
	return &AssignmentService{
		assignments: assignments,
		tasks:       tasks,
		profiles:    profiles,
		audit:       audit,
		cache:       cache,
		metrics:     metrics,
		events:      events,
		validator:   validate,
		logger:      logger,
		minAward:    minAward,
		maxAward:    maxAward,
	}
}

// Create inserts a REQUESTED assignment. Students may only request for
// themselves; employers may only assign on tasks they own. The storage
// unique index is the duplicate guard, so two concurrent creates for the
// same pair cannot both succeed.
func (s *AssignmentService) Create(ctx context.Context, actor Actor, req CreateAssignmentRequest) (*models.TaskAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	task, err := s.tasks.FindByID(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}

	if _, err := s.profiles.FindStudent(ctx, req.StudentUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	switch actor.Role {
	case models.RoleStudent:
		if actor.UserID != req.StudentUserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only request assignments for themselves")
		}
	case models.RoleEmployer:
		if task.EmployerUserID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "task belongs to another employer")
		}
	default:
		return nil, appErrors.ErrForbidden
	}

	assignment := &models.TaskAssignment{
		TaskID:        req.TaskID,
		StudentUserID: req.StudentUserID,
		RequestedAt:   time.Now().UTC(),
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			s.metrics.RecordTransition("create", "duplicate")
			return nil, appErrors.ErrDuplicateAssignment
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.metrics.RecordTransition("create", "ok")
	s.afterWrite(ctx, actor, models.AuditActionAssignmentRequested, assignment)
	return assignment, nil
}

// Accept transitions REQUESTED -> ACCEPTED. Only the assigned student may
// accept.
func (s *AssignmentService) Accept(ctx context.Context, actor Actor, assignmentID int64) (*models.TaskAssignment, error) {
	detail, err := s.loadDetail(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if detail.StudentUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another student")
	}
	if detail.Status != models.AssignmentRequested {
		s.metrics.RecordTransition("accept", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment already accepted")
	}

	now := time.Now().UTC()
	if err := s.assignments.MarkAccepted(ctx, assignmentID, now); err != nil {
		return nil, s.transitionError("accept", err)
	}

	detail.Status = models.AssignmentAccepted
	detail.AcceptedAt = &now
	s.metrics.RecordTransition("accept", "ok")
	s.afterWrite(ctx, actor, models.AuditActionAssignmentAccepted, &detail.TaskAssignment)
	return &detail.TaskAssignment, nil
}

// Reject removes the assignment record. Allowed for the assigned student
// and for the owning employer (unassign), from REQUESTED or ACCEPTED.
// Deleting frees the (task, student) pair for a future request.
func (s *AssignmentService) Reject(ctx context.Context, actor Actor, assignmentID int64) error {
	detail, err := s.loadDetail(ctx, assignmentID)
	if err != nil {
		return err
	}
	if detail.StudentUserID != actor.UserID && detail.EmployerUserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not a party to this assignment")
	}
	if detail.Status == models.AssignmentCompleted || detail.Status == models.AssignmentApproved {
		s.metrics.RecordTransition("reject", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "completed assignments cannot be rejected")
	}

	if err := s.assignments.Delete(ctx, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject assignment")
	}

	s.metrics.RecordTransition("reject", "ok")
	s.afterWrite(ctx, actor, models.AuditActionAssignmentRejected, &detail.TaskAssignment)
	return nil
}

// Complete transitions ACCEPTED -> COMPLETED. Only the assigned student.
func (s *AssignmentService) Complete(ctx context.Context, actor Actor, assignmentID int64) (*models.TaskAssignment, error) {
	detail, err := s.loadDetail(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if detail.StudentUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another student")
	}
	switch detail.Status {
	case models.AssignmentRequested:
		s.metrics.RecordTransition("complete", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment not yet accepted")
	case models.AssignmentCompleted, models.AssignmentApproved:
		s.metrics.RecordTransition("complete", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment already completed")
	}

	now := time.Now().UTC()
	if err := s.assignments.MarkCompleted(ctx, assignmentID, now); err != nil {
		return nil, s.transitionError("complete", err)
	}

	detail.Status = models.AssignmentCompleted
	detail.CompletedAt = &now
	s.metrics.RecordTransition("complete", "ok")
	s.afterWrite(ctx, actor, models.AuditActionAssignmentCompleted, &detail.TaskAssignment)
	return &detail.TaskAssignment, nil
}

// Approve transitions COMPLETED -> APPROVED and awards tokens. Only the
// employer who owns the parent task. The approval write and the balance
// increment commit in one transaction; a repeated call fails with
// INVALID_STATE and never awards twice.
func (s *AssignmentService) Approve(ctx context.Context, actor Actor, assignmentID int64, req ApproveAssignmentRequest) (*ApprovalResult, error) {
	detail, err := s.loadDetail(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if detail.EmployerUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "task belongs to another employer")
	}
	switch detail.Status {
	case models.AssignmentApproved:
		s.metrics.RecordTransition("approve", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment already approved")
	case models.AssignmentRequested, models.AssignmentAccepted:
		s.metrics.RecordTransition("approve", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment not yet completed")
	}

	// Omitted award falls back to the tier's suggested tokens.
	tokens := req.TokensAwarded
	if tokens == 0 {
		tokens = detail.TaskComplexity.SuggestedTokens()
	}
	if tokens < s.minAward || tokens > s.maxAward {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("tokens_awarded must be between %d and %d", s.minAward, s.maxAward))
	}

	now := time.Now().UTC()
	balance, err := s.assignments.Approve(ctx, assignmentID, tokens, now)
	if err != nil {
		return nil, s.transitionError("approve", err)
	}

	detail.Status = models.AssignmentApproved
	detail.ApprovedAt = &now
	detail.TokensAwarded = &tokens
	s.metrics.RecordTransition("approve", "ok")
	s.afterWrite(ctx, actor, models.AuditActionAssignmentApproved, &detail.TaskAssignment)
	s.logger.Info("tokens awarded",
		zap.Int64("assignment_id", assignmentID),
		zap.Int64("student_user_id", detail.StudentUserID),
		zap.Int("tokens", tokens),
		zap.Int("balance", balance),
	)
	return &ApprovalResult{Assignment: detail.TaskAssignment, TokenBalance: balance}, nil
}

// ListAvailableStudents returns students eligible for the employer's own
// task. Served from cache when enabled.
func (s *AssignmentService) ListAvailableStudents(ctx context.Context, actor Actor, taskID int64) ([]models.AvailableStudent, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if task.EmployerUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "task belongs to another employer")
	}

	key := availableStudentsCacheKey(taskID)
	var students []models.AvailableStudent
	if s.cache.Get(ctx, key, &students) {
		return students, nil
	}

	students, err = s.profiles.ListAvailableStudents(ctx, task)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available students")
	}
	s.cache.Set(ctx, key, students)
	return students, nil
}

// ListForEmployer returns assignments on the caller's tasks, with the
// derived activity flags.
func (s *AssignmentService) ListForEmployer(ctx context.Context, actor Actor, taskID *int64) (*models.EmployerAssignmentList, error) {
	assignments, err := s.assignments.ListByEmployer(ctx, actor.UserID, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	list := &models.EmployerAssignmentList{Assignments: assignments}
	for _, a := range assignments {
		if a.Status == models.AssignmentRequested {
			list.HasAwaitingAcceptance = true
		}
		if a.Status != models.AssignmentApproved {
			list.HasActiveAssignments = true
		}
	}
	return list, nil
}

// ListForStudent returns the caller's own assignments.
func (s *AssignmentService) ListForStudent(ctx context.Context, actor Actor, filter models.StudentAssignmentFilter) ([]models.AssignmentDetail, error) {
	assignments, err := s.assignments.ListByStudent(ctx, actor.UserID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

func (s *AssignmentService) loadDetail(ctx context.Context, assignmentID int64) (*models.AssignmentDetail, error) {
	detail, err := s.assignments.FindDetailByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return detail, nil
}

func (s *AssignmentService) transitionError(transition string, err error) error {
	switch {
	case errors.Is(err, repository.ErrStateChanged):
		s.metrics.RecordTransition(transition, "lost_race")
		return appErrors.Clone(appErrors.ErrInvalidState, "assignment state changed concurrently")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	default:
		s.metrics.RecordTransition(transition, "error")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition assignment")
	}
}

// afterWrite handles the non-critical fanout of a successful transition:
// cache invalidation, the audit trail, and the notification event.
func (s *AssignmentService) afterWrite(ctx context.Context, actor Actor, action string, assignment *models.TaskAssignment) {
	s.cache.Invalidate(ctx, availableStudentsCachePattern)

	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"task_id":         assignment.TaskID,
			"student_user_id": assignment.StudentUserID,
			"status":          assignment.Status,
		})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     action,
			Resource:   "assignment",
			ResourceID: &assignment.ID,
			NewValues:  payload,
		}); err != nil {
			s.logger.Warn("failed to record assignment audit log", zap.Error(err))
		}
	}

	if s.events != nil {
		if err := s.events.Enqueue(jobs.Job{
			ID:      fmt.Sprintf("%s-%d", action, assignment.ID),
			Type:    action,
			Payload: *assignment,
		}); err != nil {
			s.logger.Warn("failed to enqueue assignment event", zap.Error(err))
		}
	}
}
