package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
	"github.com/noah-isme/wastewatch-api/pkg/export"
)

type reportLister interface {
	List(ctx context.Context, status *models.ReportStatus) ([]dto.ReportView, error)
}

var exportHeaders = []string{"ID", "Reportado em", "Status", "Tipo", "Descrição", "Latitude", "Longitude", "Autor", "Limpo em", "Limpo por"}

// ExportService renders composed report listings as downloadable documents.
type ExportService struct {
	reports reportLister
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(reports reportLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{reports: reports, logger: logger, now: time.Now}
}

// Export renders the reports matching status in the requested format.
func (s *ExportService) Export(ctx context.Context, format export.Format, status *models.ReportStatus) (*dto.ExportFile, error) {
	views, err := s.reports.List(ctx, status)
	if err != nil {
		return nil, err
	}

	table := export.Table{Title: "Relatórios de resíduos", Headers: exportHeaders, Rows: make([][]string, 0, len(views))}
	for _, v := range views {
		table.Rows = append(table.Rows, exportRow(v))
	}

	renderer := export.RendererFor(format)
	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("reports exported", zap.String("format", string(format)), zap.Int("rows", len(table.Rows)))

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("reports-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func exportRow(v dto.ReportView) []string {
	cleanedAt, cleanedBy := "", ""
	if v.IsCleaned() && v.CleanedAt != nil && v.CleanedBy != nil {
		cleanedAt = v.CleanedAt.UTC().Format(time.RFC3339)
		cleanedBy = *v.CleanedBy
	}
	return []string{
		v.ID,
		v.ReportedAt.UTC().Format(time.RFC3339),
		string(v.Status),
		v.WasteType,
		v.Description,
		strconv.FormatFloat(v.Latitude, 'f', 6, 64),
		strconv.FormatFloat(v.Longitude, 'f', 6, 64),
		v.CreatedByName,
		cleanedAt,
		cleanedBy,
	}
}
