package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportKind distinguishes lost item reports from found item reports.
type ReportKind string

const (
	ReportKindLost  ReportKind = "lost"
	ReportKindFound ReportKind = "found"
)

// ParseReportKind converts a raw value into a ReportKind.
func ParseReportKind(raw string) (ReportKind, error) {
	switch ReportKind(raw) {
	case ReportKindLost:
		return ReportKindLost, nil
	case ReportKindFound:
		return ReportKindFound, nil
	default:
		return "", fmt.Errorf("unknown report kind %q", raw)
	}
}

// Opposite returns the kind a report must be matched against.
func (k ReportKind) Opposite() ReportKind {
	if k == ReportKindLost {
		return ReportKindFound
	}
	return ReportKindLost
}

// Valid reports whether the kind is one of the two known variants.
func (k ReportKind) Valid() bool {
	return k == ReportKindLost || k == ReportKindFound
}

// Value implements driver.Valuer.
func (k ReportKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid report kind %q", string(k))
	}
	return string(k), nil
}

// Scan implements sql.Scanner.
func (k *ReportKind) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported report kind type %T", value)
	}
	parsed, err := ParseReportKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ReportStatus captures where a report sits in the matching workflow.
type ReportStatus string

const (
	ReportStatusPending     ReportStatus = "pending"
	ReportStatusMatched     ReportStatus = "matched"
	ReportStatusChatOngoing ReportStatus = "chat_ongoing"
	ReportStatusCompleted   ReportStatus = "completed"
)

func (s ReportStatus) rank() int {
	switch s {
	case ReportStatusPending:
		return 0
	case ReportStatusMatched:
		return 1
	case ReportStatusChatOngoing:
		return 2
	case ReportStatusCompleted:
		return 3
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving to next keeps the status moving forward.
func (s ReportStatus) CanAdvanceTo(next ReportStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to >= 0 && to > from
}

// Terminal reports whether no further transition is possible.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusCompleted
}

// StatusEvent triggers a report status transition.
type StatusEvent string

const (
	StatusEventSubmit      StatusEvent = "submit"
	StatusEventMatchFound  StatusEvent = "match_found"
	StatusEventChatStarted StatusEvent = "chat_started"
	StatusEventResolved    StatusEvent = "resolved"
)

// NextStatus returns the source and target status for an event. Submit has no source.
func NextStatus(event StatusEvent) (from ReportStatus, to ReportStatus, ok bool) {
	switch event {
	case StatusEventSubmit:
		return "", ReportStatusPending, true
	case StatusEventMatchFound:
		return ReportStatusPending, ReportStatusMatched, true
	case StatusEventChatStarted:
		return ReportStatusMatched, ReportStatusChatOngoing, true
	case StatusEventResolved:
		return ReportStatusChatOngoing, ReportStatusCompleted, true
	default:
		return "", "", false
	}
}

// Report is a lost or found item submission.
type Report struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	OwnerID         string       `gorm:"size:64;not null;index;uniqueIndex:idx_reports_owner_natural,priority:1" json:"owner_id"`
	Kind            ReportKind   `gorm:"size:16;not null;index:idx_reports_candidates,priority:1;uniqueIndex:idx_reports_owner_natural,priority:2" json:"kind"`
	Category        string       `gorm:"size:64;not null;index:idx_reports_candidates,priority:2;uniqueIndex:idx_reports_owner_natural,priority:3" json:"category"`
	Brand           string       `gorm:"size:128" json:"brand,omitempty"`
	Model           string       `gorm:"size:128" json:"model,omitempty"`
	Color           string       `gorm:"size:64" json:"color,omitempty"`
	Characteristics string       `gorm:"type:text" json:"characteristics"`
	Location        string       `gorm:"size:255;uniqueIndex:idx_reports_owner_natural,priority:4" json:"location"`
	Date            time.Time    `json:"date"`
	PhotoURL        string       `gorm:"size:512" json:"photo_url,omitempty"`
	Status          ReportStatus `gorm:"size:32;not null;default:pending;index" json:"status"`
	MatchCount      int          `gorm:"not null;default:0" json:"match_count"`
	MatchedReportID string       `gorm:"size:36" json:"matched_report_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// BeforeCreate assigns the store identifier and the initial status.
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		_, initial, _ := NextStatus(StatusEventSubmit)
		r.Status = initial
	}
	return nil
}
