package models

import (
	"fmt"
	"time"
)

// ReportStatus enumerates the lifecycle states of a waste report.
type ReportStatus string

const (
	ReportStatusReported ReportStatus = "reported"
	// ReportStatusInProgress is reserved; no operation produces it but it is accepted as a list filter.
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusCleaned    ReportStatus = "cleaned"
)

// Valid reports whether s is one of the declared statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusReported, ReportStatusInProgress, ReportStatusCleaned:
		return true
	}
	return false
}

// ParseReportStatus converts raw input into a ReportStatus.
func ParseReportStatus(raw string) (ReportStatus, error) {
	s := ReportStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown report status %q", raw)
	}
	return s, nil
}

// WasteReport is a geolocated report of accumulated plastic waste.
// CleanedAt and CleanedBy are nil until Status becomes cleaned and are then set together.
type WasteReport struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"userId"`
	Latitude    float64      `db:"latitude" json:"latitude"`
	Longitude   float64      `db:"longitude" json:"longitude"`
	Description string       `db:"description" json:"description"`
	WasteType   string       `db:"waste_type" json:"wasteType"`
	Status      ReportStatus `db:"status" json:"status"`
	ImageID     *string      `db:"image_id" json:"imageId"`
	ReportedAt  time.Time    `db:"reported_at" json:"reportedAt"`
	CleanedAt   *time.Time   `db:"cleaned_at" json:"cleanedAt"`
	CleanedBy   *string      `db:"cleaned_by" json:"cleanedBy"`
}

// IsCleaned reports whether the cleanup transition already happened.
func (r WasteReport) IsCleaned() bool {
	return r.Status == ReportStatusCleaned
}

// ReportFilter narrows report listings. A nil Status lists every report.
type ReportFilter struct {
	Status *ReportStatus
}

// MarkCleanedParams describes the cleanup patch.
type MarkCleanedParams struct {
	ReportID  string
	CleanedBy string
	CleanedAt time.Time
	// OnlyIfUncleaned makes the patch a no-op for reports already cleaned.
	OnlyIfUncleaned bool
}
