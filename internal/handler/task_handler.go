package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/service"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/response"
)

// TaskHandler serves the job task catalog endpoints.
type TaskHandler struct {
	service *service.TaskService
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// List godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param field_id query int false "Filter by field"
// @Param employer_id query int false "Filter by employer"
// @Param open query bool false "Only tasks with future deadlines"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	var filter models.TaskFilter
	if raw := c.Query("field_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.FieldID = &id
		}
	}
	if raw := c.Query("employer_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.EmployerUserID = &id
		}
	}
	filter.OpenOnly = c.Query("open") == "true"
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	tasks, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, pagination)
}

// Get godoc
// @Summary Get task by id
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	task, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Create godoc
// @Summary Create task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body service.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Update godoc
// @Summary Update task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param payload body service.UpdateTaskRequest true "Task payload"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
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
	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Delete godoc
// @Summary Delete task
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 204 "No Content"
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
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
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
