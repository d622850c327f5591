package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wastewatch-api/internal/models"
)

const wasteReportColumns = `id, user_id, latitude, longitude, description, waste_type, status, image_id, reported_at, cleaned_at, cleaned_by`

// WasteReportRepository persists waste reports.
type WasteReportRepository struct {
	db *sqlx.DB
}

// NewWasteReportRepository constructs the repository.
func NewWasteReportRepository(db *sqlx.DB) *WasteReportRepository {
	return &WasteReportRepository{db: db}
}

// Create inserts a new report.
func (r *WasteReportRepository) Create(ctx context.Context, report *models.WasteReport) error {
	const query = `INSERT INTO waste_reports (` + wasteReportColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := executor(ctx, r.db).ExecContext(ctx, query,
		report.ID,
		report.UserID,
		report.Latitude,
		report.Longitude,
		report.Description,
		report.WasteType,
		report.Status,
		report.ImageID,
		report.ReportedAt,
		report.CleanedAt,
		report.CleanedBy,
	); err != nil {
		return fmt.Errorf("insert waste report: %w", err)
	}
	return nil
}

// GetByID fetches a report. sql.ErrNoRows is returned unwrapped when absent.
func (r *WasteReportRepository) GetByID(ctx context.Context, id string) (*models.WasteReport, error) {
	const query = `SELECT ` + wasteReportColumns + ` FROM waste_reports WHERE id = $1`
	var report models.WasteReport
	if err := executor(ctx, r.db).GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports matching filter, newest first.
func (r *WasteReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.WasteReport, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + wasteReportColumns + ` FROM waste_reports`)
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		fmt.Fprintf(&query, " WHERE status = $%d", len(args))
	}
	query.WriteString(" ORDER BY reported_at DESC, id DESC")

	reports := make([]models.WasteReport, 0)
	if err := executor(ctx, r.db).SelectContext(ctx, &reports, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list waste reports: %w", err)
	}
	return reports, nil
}

// MarkCleaned applies the cleanup patch and returns the number of rows changed.
func (r *WasteReportRepository) MarkCleaned(ctx context.Context, params models.MarkCleanedParams) (int64, error) {
	query := `UPDATE waste_reports SET status = $2, cleaned_at = $3, cleaned_by = $4 WHERE id = $1`
	if params.OnlyIfUncleaned {
		query += ` AND status <> 'cleaned'`
	}
	res, err := executor(ctx, r.db).ExecContext(ctx, query, params.ReportID, models.ReportStatusCleaned, params.CleanedAt, params.CleanedBy)
	if err != nil {
		return 0, fmt.Errorf("mark waste report cleaned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark waste report cleaned rows: %w", err)
	}
	return affected, nil
}
