package models

import "time"

// Comment is an immutable note attached to a waste report.
type Comment struct {
	ID            string    `db:"id" json:"id"`
	WasteReportID string    `db:"waste_report_id" json:"wasteReportId"`
	UserID        string    `db:"user_id" json:"userId"`
	Content       string    `db:"content" json:"content"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
