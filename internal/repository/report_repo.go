package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// CandidateFilter narrows the opposite-kind reports a submission is scored against.
type CandidateFilter struct {
	Kind         models.ReportKind
	Category     string
	ExcludeOwner string
}

// ReportCursor marks a position in the (created_at, id) ordering of reports. The zero
// value starts from the oldest report.
type ReportCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether the cursor points at the beginning.
func (c ReportCursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// ReportRepository persists lost and found reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (models.Report, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Report, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]models.Report, error)
	ListByStatus(ctx context.Context, status models.ReportStatus, after ReportCursor, limit int) ([]models.Report, error)
	TransitionStatus(ctx context.Context, ids []string, from, to models.ReportStatus) (int64, error)
	UpdateMatchSummary(ctx context.Context, id string, matchCount int, matchedReportID string) error
	LinkMatchedReport(ctx context.Context, ids []string, matchedReportID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	Transaction(ctx context.Context, fn func(repo ReportRepository) error) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository constructs a report repository backed by GORM.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) FindByID(ctx context.Context, id string) (models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return models.Report{}, err
	}
	return report, nil
}

func (r *reportRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Report, error) {
	var reports []models.Report
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) ListCandidates(ctx context.Context, filter CandidateFilter) ([]models.Report, error) {
	query := r.db.WithContext(ctx).
		Where("kind = ?", string(filter.Kind)).
		Where("category = ?", filter.Category)
	if filter.ExcludeOwner != "" {
		query = query.Where("owner_id <> ?", filter.ExcludeOwner)
	}

	var reports []models.Report
	if err := query.Order("id ASC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// ListByStatus pages through reports in the given status ordered by (created_at, id),
// returning at most limit rows strictly after the cursor.
func (r *reportRepository) ListByStatus(ctx context.Context, status models.ReportStatus, after ReportCursor, limit int) ([]models.Report, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Where("status = ?", string(status))
	if !after.IsZero() {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var reports []models.Report
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// TransitionStatus moves the given reports from one status to another. Rows that are no
// longer in the source status are left untouched and not counted.
func (r *reportRepository) TransitionStatus(ctx context.Context, ids []string, from, to models.ReportStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id IN ?", ids).
		Where("status = ?", string(from)).
		Update("status", string(to))
	return result.RowsAffected, result.Error
}

func (r *reportRepository) UpdateMatchSummary(ctx context.Context, id string, matchCount int, matchedReportID string) error {
	return r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"match_count":       matchCount,
			"matched_report_id": matchedReportID,
		}).Error
}

// LinkMatchedReport records matchedReportID on reports that do not reference an opponent yet.
func (r *reportRepository) LinkMatchedReport(ctx context.Context, ids []string, matchedReportID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id IN ?", ids).
		Where("matched_report_id = '' OR matched_report_id IS NULL").
		Update("matched_report_id", matchedReportID)
	return result.RowsAffected, result.Error
}

func (r *reportRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Report{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reportRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.Report{})
	return result.RowsAffected, result.Error
}

func (r *reportRepository) Transaction(ctx context.Context, fn func(repo ReportRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&reportRepository{db: tx})
	})
}
