package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/database"
	"github.com/noah-isme/lostfound-go-api/internal/models"
)

func newTestDB(t *testing.T, tables ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(tables...))
	return db
}

func seedReport(t *testing.T, repo ReportRepository, report models.Report) models.Report {
	t.Helper()
	if report.Date.IsZero() {
		report.Date = time.Now().UTC()
	}
	require.NoError(t, repo.Create(context.Background(), &report))
	return report
}

func TestReportRepositoryCreateAssignsIDAndPendingStatus(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))

	report := seedReport(t, repo, models.Report{OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "station"})
	require.NotEmpty(t, report.ID)
	require.Equal(t, models.ReportStatusPending, report.Status)

	stored, err := repo.FindByID(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportKindLost, stored.Kind)
	require.Equal(t, models.ReportStatusPending, stored.Status)
}

func TestReportRepositoryRejectsSameOwnerNaturalKey(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))
	seedReport(t, repo, models.Report{OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "station"})

	dup := models.Report{OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "station", Date: time.Now()}
	err := repo.Create(context.Background(), &dup)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Another owner or the opposite kind is a different key.
	seedReport(t, repo, models.Report{OwnerID: "u2", Kind: models.ReportKindLost, Category: "bag", Location: "station"})
	seedReport(t, repo, models.Report{OwnerID: "u1", Kind: models.ReportKindFound, Category: "bag", Location: "station"})
}

func TestReportRepositoryListCandidatesFiltersKindCategoryAndOwner(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))

	seedReport(t, repo, models.Report{ID: "b", OwnerID: "u2", Kind: models.ReportKindFound, Category: "electronics", Location: "library"})
	seedReport(t, repo, models.Report{ID: "a", OwnerID: "u3", Kind: models.ReportKindFound, Category: "electronics", Location: "gym"})
	seedReport(t, repo, models.Report{ID: "c", OwnerID: "u1", Kind: models.ReportKindFound, Category: "electronics", Location: "hall"})
	seedReport(t, repo, models.Report{ID: "d", OwnerID: "u2", Kind: models.ReportKindLost, Category: "electronics", Location: "park"})
	seedReport(t, repo, models.Report{ID: "e", OwnerID: "u2", Kind: models.ReportKindFound, Category: "bag", Location: "park"})

	candidates, err := repo.ListCandidates(context.Background(), CandidateFilter{
		Kind:         models.ReportKindFound,
		Category:     "electronics",
		ExcludeOwner: "u1",
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "a", candidates[0].ID)
	require.Equal(t, "b", candidates[1].ID)
}

func TestReportRepositoryTransitionStatusOnlyMovesSourceState(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))
	ctx := context.Background()

	pending := seedReport(t, repo, models.Report{ID: "p", OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "a"})
	matched := seedReport(t, repo, models.Report{ID: "m", OwnerID: "u2", Kind: models.ReportKindLost, Category: "bag", Location: "b", Status: models.ReportStatusMatched})

	affected, err := repo.TransitionStatus(ctx, []string{pending.ID, matched.ID}, models.ReportStatusPending, models.ReportStatusMatched)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	affected, err = repo.TransitionStatus(ctx, []string{pending.ID}, models.ReportStatusPending, models.ReportStatusMatched)
	require.NoError(t, err)
	require.Zero(t, affected, "second transition must be a no-op")

	stored, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusMatched, stored.Status)
}

func TestReportRepositoryLinkMatchedReportKeepsExistingLinks(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))
	ctx := context.Background()

	seedReport(t, repo, models.Report{ID: "x", OwnerID: "u1", Kind: models.ReportKindFound, Category: "bag", Location: "a"})
	seedReport(t, repo, models.Report{ID: "y", OwnerID: "u2", Kind: models.ReportKindFound, Category: "bag", Location: "b", MatchedReportID: "older"})

	affected, err := repo.LinkMatchedReport(ctx, []string{"x", "y"}, "primary")
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	y, err := repo.FindByID(ctx, "y")
	require.NoError(t, err)
	require.Equal(t, "older", y.MatchedReportID)
}

func TestReportRepositoryTransactionRollsBack(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))
	ctx := context.Background()
	seedReport(t, repo, models.Report{ID: "r", OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "a"})

	err := repo.Transaction(ctx, func(tx ReportRepository) error {
		if _, err := tx.TransitionStatus(ctx, []string{"r"}, models.ReportStatusPending, models.ReportStatusMatched); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	stored, err := repo.FindByID(ctx, "r")
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusPending, stored.Status)
}

func TestReportRepositoryDeleteByOwner(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))
	ctx := context.Background()
	seedReport(t, repo, models.Report{OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "a"})
	seedReport(t, repo, models.Report{OwnerID: "u1", Kind: models.ReportKindLost, Category: "bag", Location: "b"})
	seedReport(t, repo, models.Report{OwnerID: "u2", Kind: models.ReportKindLost, Category: "bag", Location: "a"})

	deleted, err := repo.DeleteByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	remaining, err := repo.ListByOwner(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	require.ErrorIs(t, repo.Delete(ctx, "missing"), gorm.ErrRecordNotFound)
}

func TestReportRepositoryListByStatusPagesByCursor(t *testing.T) {
	repo := NewReportRepository(newTestDB(t, &models.Report{}))
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	var want []string
	for i := 0; i < 5; i++ {
		report := seedReport(t, repo, models.Report{
			OwnerID:   fmt.Sprintf("u%d", i),
			Kind:      models.ReportKindLost,
			Category:  "bag",
			Location:  "station",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		want = append(want, report.ID)
	}
	matched := seedReport(t, repo, models.Report{OwnerID: "u9", Kind: models.ReportKindFound, Category: "bag", Location: "station", CreatedAt: base})
	_, err := repo.TransitionStatus(context.Background(), []string{matched.ID}, models.ReportStatusPending, models.ReportStatusMatched)
	require.NoError(t, err)

	var got []string
	cursor := ReportCursor{}
	for {
		page, err := repo.ListByStatus(context.Background(), models.ReportStatusPending, cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.LessOrEqual(t, len(page), 2)
		for _, report := range page {
			got = append(got, report.ID)
		}
		last := page[len(page)-1]
		cursor = ReportCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	require.Equal(t, want, got)
}
