package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/service"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/response"
)

// ProfileHandler serves student and employer profile endpoints.
type ProfileHandler struct {
	service *service.ProfileService
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Me godoc
// @Summary Get own profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profiles/me [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch actor.Role {
	case models.RoleStudent:
		profile, err := h.service.GetStudent(c.Request.Context(), actor.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, profile, nil)
	case models.RoleEmployer:
		profile, err := h.service.GetEmployer(c.Request.Context(), actor.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, profile, nil)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no profile for this role"))
	}
}

// GetStudent godoc
// @Summary Get student profile
// @Tags Profiles
// @Produce json
// @Param id path int true "Student user ID"
// @Success 200 {object} response.Envelope
// @Router /profiles/students/{id} [get]
func (h *ProfileHandler) GetStudent(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	profile, err := h.service.GetStudent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpsertStudent godoc
// @Summary Create or update own student profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body service.UpsertStudentProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /profiles/student [put]
func (h *ProfileHandler) UpsertStudent(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpsertStudentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	profile, err := h.service.UpsertStudent(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpsertEmployer godoc
// @Summary Create or update own employer profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body service.UpsertEmployerProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /profiles/employer [put]
func (h *ProfileHandler) UpsertEmployer(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpsertEmployerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	profile, err := h.service.UpsertEmployer(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
