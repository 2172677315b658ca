package dto

import (
	"time"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// ReportSubmitRequest is the payload for submitting a lost or found report.
type ReportSubmitRequest struct {
	Kind            string    `json:"kind" validate:"required,oneof=lost found"`
	Category        string    `json:"category" validate:"required,min=2,max=64"`
	Brand           string    `json:"brand" validate:"omitempty,max=128"`
	Model           string    `json:"model" validate:"omitempty,max=128"`
	Color           string    `json:"color" validate:"omitempty,max=64"`
	Characteristics string    `json:"characteristics" validate:"omitempty,max=2000"`
	Location        string    `json:"location" validate:"omitempty,max=255"`
	Date            time.Time `json:"date" validate:"required"`
	PhotoURL        string    `json:"photo_url" validate:"omitempty,url,max=512"`
}

// ReportResponse is the read model of a report.
type ReportResponse struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Kind            string    `json:"kind"`
	Category        string    `json:"category"`
	Brand           string    `json:"brand,omitempty"`
	Model           string    `json:"model,omitempty"`
	Color           string    `json:"color,omitempty"`
	Characteristics string    `json:"characteristics"`
	Location        string    `json:"location"`
	Date            time.Time `json:"date"`
	PhotoURL        string    `json:"photo_url,omitempty"`
	Status          string    `json:"status"`
	MatchCount      int       `json:"match_count"`
	MatchedReportID string    `json:"matched_report_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MatchedReportResponse describes an opponent report with its score.
type MatchedReportResponse struct {
	Report ReportResponse `json:"report"`
	Score  int            `json:"score"`
}

// ReportSubmitResponse reports the submission together with its match outcome.
type ReportSubmitResponse struct {
	Report       ReportResponse         `json:"report"`
	Matched      bool                   `json:"matched"`
	Opponent     *MatchedReportResponse `json:"opponent,omitempty"`
	Notification *NotificationResponse  `json:"notification,omitempty"`
}

// NewReportResponse converts a model into a DTO.
func NewReportResponse(report models.Report) ReportResponse {
	return ReportResponse{
		ID:              report.ID,
		OwnerID:         report.OwnerID,
		Kind:            string(report.Kind),
		Category:        report.Category,
		Brand:           report.Brand,
		Model:           report.Model,
		Color:           report.Color,
		Characteristics: report.Characteristics,
		Location:        report.Location,
		Date:            report.Date,
		PhotoURL:        report.PhotoURL,
		Status:          string(report.Status),
		MatchCount:      report.MatchCount,
		MatchedReportID: report.MatchedReportID,
		CreatedAt:       report.CreatedAt,
	}
}

// NewReportResponseSlice converts a slice of models into DTOs.
func NewReportResponseSlice(reports []models.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, NewReportResponse(report))
	}
	return out
}

// StorageResetResponse reports how many records a storage reset removed.
type StorageResetResponse struct {
	Reports       int64 `json:"reports"`
	Messages      int64 `json:"messages"`
	Threads       int64 `json:"threads"`
	Notifications int64 `json:"notifications"`
}
