package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wastewatch-api/internal/models"
)

// CommentRepository persists report comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment. The parent report is not checked.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	const query = `INSERT INTO comments (id, waste_report_id, user_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, comment.ID, comment.WasteReportID, comment.UserID, comment.Content, comment.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListByReport returns a report's comments, newest first.
func (r *CommentRepository) ListByReport(ctx context.Context, reportID string) ([]models.Comment, error) {
	const query = `SELECT id, waste_report_id, user_id, content, created_at FROM comments WHERE waste_report_id = $1 ORDER BY created_at DESC, id DESC`
	comments := make([]models.Comment, 0)
	if err := executor(ctx, r.db).SelectContext(ctx, &comments, query, reportID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
