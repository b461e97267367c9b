package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/service"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/response"
)

// AssignmentHandler serves the assignment lifecycle endpoints.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Create godoc
// @Summary Request an assignment
// @Description Pair a student with a task. Students request for themselves; employers assign students to their own tasks.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Accept godoc
// @Summary Accept an assignment request
// @Tags Assignments
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/accept [post]
func (h *AssignmentHandler) Accept(c *gin.Context) {
	h.transition(c, h.service.Accept)
}

// Complete godoc
// @Summary Mark an assignment as completed
// @Tags Assignments
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/complete [post]
func (h *AssignmentHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

// Reject godoc
// @Summary Reject an assignment
// @Description Removes the assignment so the task/student pair can be requested again.
// @Tags Assignments
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 204 "No Content"
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/reject [post]
func (h *AssignmentHandler) Reject(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Reject(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Approve godoc
// @Summary Approve a completed assignment and award tokens
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path int true "Assignment ID"
// @Param payload body service.ApproveAssignmentRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/approve [post]
func (h *AssignmentHandler) Approve(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ApproveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Approve(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AvailableStudents godoc
// @Summary List students eligible for a task
// @Tags Assignments
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/available-students [get]
func (h *AssignmentHandler) AvailableStudents(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	taskID, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.service.ListAvailableStudents(c.Request.Context(), actor, taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// ListForEmployer godoc
// @Summary List assignments across the employer's tasks
// @Tags Assignments
// @Produce json
// @Param task_id query int false "Filter by task"
// @Success 200 {object} response.Envelope
// @Router /assignments/employer [get]
func (h *AssignmentHandler) ListForEmployer(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var taskID *int64
	if raw := c.Query("task_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid task_id"))
			return
		}
		taskID = &id
	}
	list, err := h.service.ListForEmployer(c.Request.Context(), actor, taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// ListForStudent godoc
// @Summary List the student's own assignments
// @Tags Assignments
// @Produce json
// @Param completed query bool false "Filter by completion"
// @Success 200 {object} response.Envelope
// @Router /assignments/student [get]
func (h *AssignmentHandler) ListForStudent(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var filter models.StudentAssignmentFilter
	if raw := c.Query("completed"); raw != "" {
		completed := raw == "true"
		filter.Completed = &completed
	}
	assignments, err := h.service.ListForStudent(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

func (h *AssignmentHandler) transition(c *gin.Context, fn func(ctx context.Context, actor service.Actor, id int64) (*models.TaskAssignment, error)) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
