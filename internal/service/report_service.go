package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
	"github.com/noah-isme/wastewatch-api/pkg/events"
)

type reportRepository interface {
	Create(ctx context.Context, report *models.WasteReport) error
	GetByID(ctx context.Context, id string) (*models.WasteReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.WasteReport, error)
	MarkCleaned(ctx context.Context, params models.MarkCleanedParams) (int64, error)
}

type commentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByReport(ctx context.Context, reportID string) ([]models.Comment, error)
}

// profileLedger maintains profile counters on behalf of the report lifecycle.
type profileLedger interface {
	CreditReport(ctx context.Context, caller models.Caller) error
	CreditCleanup(ctx context.Context, userID string) (bool, error)
	InvalidateLeaderboard(ctx context.Context)
}

type reportComposer interface {
	ComposeReports(ctx context.Context, reports []models.WasteReport) ([]dto.ReportView, error)
	ComposeReport(ctx context.Context, report models.WasteReport, comments []models.Comment) (*dto.ReportDetail, error)
}

// ReportConfig selects lifecycle policy.
type ReportConfig struct {
	// StrictCleanup rejects cleaning an already cleaned report with ErrAlreadyCleaned
	// instead of re-stamping it and crediting the caller again.
	StrictCleanup bool
	// CommentsRequireReport rejects comments on unknown reports with ErrNotFound.
	CommentsRequireReport bool
}

// ReportService owns the waste report lifecycle and comment attachment.
type ReportService struct {
	reports   reportRepository
	comments  commentRepository
	ledger    profileLedger
	composer  reportComposer
	images    imageStore
	tx        txRunner
	identity  IdentityResolver
	events    events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ReportConfig
	now       func() time.Time
}

// ReportDeps groups ReportService collaborators.
type ReportDeps struct {
	Reports   reportRepository
	Comments  commentRepository
	Ledger    profileLedger
	Composer  reportComposer
	Images    imageStore
	Tx        txRunner
	Identity  IdentityResolver
	Events    events.Publisher
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(deps ReportDeps, cfg ReportConfig) *ReportService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Identity == nil {
		deps.Identity = ContextIdentity{}
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &ReportService{
		reports:   deps.Reports,
		comments:  deps.Comments,
		ledger:    deps.Ledger,
		composer:  deps.Composer,
		images:    deps.Images,
		tx:        deps.Tx,
		identity:  deps.Identity,
		events:    deps.Events,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Create submits a report for the caller and credits their profile, creating it if absent.
// Empty description or waste type are accepted.
func (s *ReportService) Create(ctx context.Context, req dto.CreateReportRequest) (string, error) {
	caller := s.identity.Caller(ctx)
	if caller == nil {
		return "", appErrors.ErrUnauthenticated
	}
	if err := s.validate(req); err != nil {
		return "", err
	}

	report := &models.WasteReport{
		ID:          uuid.NewString(),
		UserID:      caller.UserID,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Description: req.Description,
		WasteType:   req.WasteType,
		Status:      models.ReportStatusReported,
		ImageID:     req.ImageID,
		ReportedAt:  s.now().UTC(),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reports.Create(ctx, report); err != nil {
			return err
		}
		return s.ledger.CreditReport(ctx, *caller)
	})
	if err != nil {
		return "", appErrors.Internal(err, "failed to create report")
	}

	s.metrics.ReportCreated()
	s.ledger.InvalidateLeaderboard(ctx)
	s.publish(ctx, events.New(events.ReportCreated, map[string]string{
		"reportId":  report.ID,
		"userId":    report.UserID,
		"wasteType": report.WasteType,
	}))
	return report.ID, nil
}

// CreateWithImage stores the image before creating the report. A storage failure aborts
// with ErrUploadFailed and nothing is written.
func (s *ReportService) CreateWithImage(ctx context.Context, req dto.CreateReportRequest, upload dto.ImageUpload) (string, error) {
	if s.identity.Caller(ctx) == nil {
		return "", appErrors.ErrUnauthenticated
	}
	if err := s.validate(req); err != nil {
		return "", err
	}
	id, err := s.images.Store(ctx, upload)
	if err != nil {
		return "", err
	}
	req.ImageID = &id
	return s.Create(ctx, req)
}

// List returns composed reports, newest first, optionally filtered by status.
func (s *ReportService) List(ctx context.Context, status *models.ReportStatus) ([]dto.ReportView, error) {
	reports, err := s.reports.List(ctx, models.ReportFilter{Status: status})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list reports")
	}
	views, err := s.composer.ComposeReports(ctx, reports)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compose reports")
	}
	return views, nil
}

// Get returns the composed report with its comments, or nil when the id is unknown.
func (s *ReportService) Get(ctx context.Context, id string) (*dto.ReportDetail, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}
	comments, err := s.comments.ListByReport(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load comments")
	}
	detail, err := s.composer.ComposeReport(ctx, *report, comments)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compose report")
	}
	return detail, nil
}

// AddComment attaches a comment to reportID. Unless CommentsRequireReport is set the
// report is not required to exist.
func (s *ReportService) AddComment(ctx context.Context, reportID string, req dto.AddCommentRequest) (string, error) {
	caller := s.identity.Caller(ctx)
	if caller == nil {
		return "", appErrors.ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	if s.config.CommentsRequireReport {
		if _, err := s.reports.GetByID(ctx, reportID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "report not found")
			}
			return "", appErrors.Internal(err, "failed to load report")
		}
	}

	comment := &models.Comment{
		ID:            uuid.NewString(),
		WasteReportID: reportID,
		UserID:        caller.UserID,
		Content:       req.Content,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return "", appErrors.Internal(err, "failed to add comment")
	}

	s.metrics.CommentCreated()
	s.publish(ctx, events.New(events.CommentAdded, map[string]string{
		"commentId": comment.ID,
		"reportId":  reportID,
		"userId":    caller.UserID,
	}))
	return comment.ID, nil
}

// MarkAsCleaned moves the report to cleaned, stamping the caller and time, and credits the
// caller's cleanups counter when they already have a profile. Without StrictCleanup a
// cleaned report is re-stamped and credited again.
func (s *ReportService) MarkAsCleaned(ctx context.Context, reportID string) error {
	caller := s.identity.Caller(ctx)
	if caller == nil {
		return appErrors.ErrUnauthenticated
	}

	now := s.now().UTC()
	credited := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		affected, err := s.reports.MarkCleaned(ctx, models.MarkCleanedParams{
			ReportID:        reportID,
			CleanedBy:       caller.UserID,
			CleanedAt:       now,
			OnlyIfUncleaned: s.config.StrictCleanup,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.cleanupMiss(ctx, reportID)
		}
		credited, err = s.ledger.CreditCleanup(ctx, caller.UserID)
		return err
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Internal(err, "failed to mark report as cleaned")
	}

	s.metrics.ReportCleaned()
	if credited {
		s.ledger.InvalidateLeaderboard(ctx)
	}
	s.publish(ctx, events.New(events.ReportCleaned, map[string]string{
		"reportId":  reportID,
		"cleanedBy": caller.UserID,
	}))
	return nil
}

// cleanupMiss explains why the cleanup patch touched no row.
func (s *ReportService) cleanupMiss(ctx context.Context, reportID string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return err
	}
	if report.IsCleaned() {
		return appErrors.ErrAlreadyCleaned
	}
	return fmt.Errorf("cleanup of report %s matched no row", reportID)
}

func (s *ReportService) validate(req dto.CreateReportRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	return nil
}

func (s *ReportService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}
