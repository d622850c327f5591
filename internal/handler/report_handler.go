package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
	"github.com/noah-isme/wastewatch-api/pkg/export"
	"github.com/noah-isme/wastewatch-api/pkg/response"
)

type reportService interface {
	Create(ctx context.Context, req dto.CreateReportRequest) (string, error)
	CreateWithImage(ctx context.Context, req dto.CreateReportRequest, upload dto.ImageUpload) (string, error)
	List(ctx context.Context, status *models.ReportStatus) ([]dto.ReportView, error)
	Get(ctx context.Context, id string) (*dto.ReportDetail, error)
	AddComment(ctx context.Context, reportID string, req dto.AddCommentRequest) (string, error)
	MarkAsCleaned(ctx context.Context, reportID string) error
}

type reportExporter interface {
	Export(ctx context.Context, format export.Format, status *models.ReportStatus) (*dto.ExportFile, error)
}

// ReportHandler exposes waste report endpoints.
type ReportHandler struct {
	reports  reportService
	exporter reportExporter
}

// NewReportHandler builds a new handler.
func NewReportHandler(reports reportService, exporter reportExporter) *ReportHandler {
	return &ReportHandler{reports: reports, exporter: exporter}
}

// List godoc
// @Summary List waste reports, newest first
// @Tags Reports
// @Produce json
// @Param status query string false "reported | in_progress | cleaned"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	status, err := statusFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	views, err := h.reports.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, views)
}

// Get godoc
// @Summary Get a report with its comments
// @Description Unknown ids return 200 with null data.
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	detail, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if detail == nil {
		response.OK(c, nil)
		return
	}
	response.OK(c, detail)
}

// Create godoc
// @Summary Submit a waste report
// @Description Accepts JSON with an optional imageId, or multipart/form-data with an optional image file.
// @Tags Reports
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.CreateReportRequest
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err))
			return
		}
		id, err := h.reports.Create(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, gin.H{"id": id})
		return
	}

	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	upload, file, err := imageFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var id string
	if upload == nil {
		id, err = h.reports.Create(c.Request.Context(), req)
	} else {
		defer file.Close() //nolint:errcheck
		id, err = h.reports.CreateWithImage(c.Request.Context(), req, *upload)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// AddComment godoc
// @Summary Comment on a report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.AddCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /reports/{id}/comments [post]
func (h *ReportHandler) AddComment(c *gin.Context) {
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	id, err := h.reports.AddComment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// MarkAsCleaned godoc
// @Summary Mark a report as cleaned by the caller
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/clean [post]
func (h *ReportHandler) MarkAsCleaned(c *gin.Context) {
	if err := h.reports.MarkAsCleaned(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil)
}

// Export godoc
// @Summary Export reports as CSV or PDF
// @Tags Reports
// @Produce text/csv,application/pdf
// @Param format query string false "csv (default) | pdf"
// @Param status query string false "reported | in_progress | cleaned"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	status, err := statusFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), format, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

func statusFilter(c *gin.Context) (*models.ReportStatus, error) {
	raw := c.Query("status")
	if raw == "" {
		return nil, nil
	}
	status, err := models.ParseReportStatus(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status filter")
	}
	return &status, nil
}
