package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/service"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/response"
)

// ExportHandler serves assignment report export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

type createExportRequest struct {
	Format models.ExportFormat `json:"format"`
}

// Create godoc
// @Summary Request an assignment report export
// @Description Queues a CSV or PDF report of the caller's assignment history.
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body createExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exp, err := h.service.Request(c.Request.Context(), actor, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, exp, nil)
}

// Get godoc
// @Summary Get export status
// @Tags Exports
// @Produce json
// @Param id path string true "Export ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	exp, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exp, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description Streams the rendered file. Authenticated by the signed token, not a JWT.
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.FileAttachment(file.Name(), filepath.Base(file.Name()))
}
