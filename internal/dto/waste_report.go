package dto

import (
	"io"

	"github.com/noah-isme/wastewatch-api/internal/models"
)

// CreateReportRequest is the payload for submitting a waste report.
// Description and WasteType are not checked for emptiness; clients validate them.
type CreateReportRequest struct {
	Latitude    *float64 `json:"latitude" form:"latitude" validate:"required"`
	Longitude   *float64 `json:"longitude" form:"longitude" validate:"required"`
	Description string   `json:"description" form:"description"`
	WasteType   string   `json:"wasteType" form:"wasteType"`
	ImageID     *string  `json:"imageId,omitempty" form:"imageId"`
}

// AddCommentRequest is the payload for commenting on a report.
type AddCommentRequest struct {
	Content string `json:"content"`
}

// ReportView is a report enriched with its author and resolved image URL.
type ReportView struct {
	models.WasteReport
	CreatedByName     string  `json:"createdByName"`
	CreatedByImageURL *string `json:"createdByImageUrl"`
	ImageURL          *string `json:"imageUrl"`
}

// CommentView is a comment enriched with its author.
type CommentView struct {
	models.Comment
	UserName     string  `json:"userName"`
	UserImageURL *string `json:"userImageUrl"`
}

// ReportDetail is a report view with its comments, newest first.
type ReportDetail struct {
	ReportView
	Comments []CommentView `json:"comments"`
}

// ImageUpload carries image bytes received by the API for server-side storage.
type ImageUpload struct {
	Body        io.Reader
	ContentType string
	Size        int64
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
