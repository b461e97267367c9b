package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweep-app/sweep-api/internal/service"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/response"
)

// FieldHandler serves the field registry endpoints.
type FieldHandler struct {
	service *service.FieldService
}

// NewFieldHandler constructs a field handler.
func NewFieldHandler(svc *service.FieldService) *FieldHandler {
	return &FieldHandler{service: svc}
}

// List godoc
// @Summary List fields
// @Tags Fields
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fields [get]
func (h *FieldHandler) List(c *gin.Context) {
	fields, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fields, nil)
}

// Get godoc
// @Summary Get field by id
// @Tags Fields
// @Produce json
// @Param id path int true "Field ID"
// @Success 200 {object} response.Envelope
// @Router /fields/{id} [get]
func (h *FieldHandler) Get(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	field, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, field, nil)
}

// Create godoc
// @Summary Create field
// @Tags Fields
// @Accept json
// @Produce json
// @Param payload body service.CreateFieldRequest true "Field payload"
// @Success 201 {object} response.Envelope
// @Router /fields [post]
func (h *FieldHandler) Create(c *gin.Context) {
	var req service.CreateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	field, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, field)
}

// Rename godoc
// @Summary Rename field
// @Tags Fields
// @Accept json
// @Produce json
// @Param id path int true "Field ID"
// @Param payload body service.CreateFieldRequest true "Field payload"
// @Success 200 {object} response.Envelope
// @Router /fields/{id} [put]
func (h *FieldHandler) Rename(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	field, err := h.service.Rename(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, field, nil)
}
