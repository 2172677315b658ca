package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/database"
	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Report{}, &models.ChatThread{}, &models.ChatMessage{}, &models.Notification{}))
	return db
}

type reportFixture struct {
	reports       ReportService
	notifications NotificationService
	reportRepo    repository.ReportRepository
}

func newReportFixture(t *testing.T) reportFixture {
	t.Helper()
	db := newServiceTestDB(t)
	validate := validator.New()

	reportRepo := repository.NewReportRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, validate, testLogger())
	matcher := NewMatchService(reportRepo, notifications, testLogger())

	return reportFixture{
		reports:       NewReportService(reportRepo, matcher, validate, testLogger()),
		notifications: notifications,
		reportRepo:    reportRepo,
	}
}

func laptopRequest(kind, characteristics string) dto.ReportSubmitRequest {
	return dto.ReportSubmitRequest{
		Kind:            kind,
		Category:        "electronics",
		Brand:           "Acer",
		Color:           "black",
		Location:        "library",
		Characteristics: characteristics,
		Date:            time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestSubmitMatchesComplementaryReports(t *testing.T) {
	fixture := newReportFixture(t)
	ctx := context.Background()

	found, err := fixture.reports.Submit(ctx, "user-b", laptopRequest("found", "black laptop found near entrance"))
	require.NoError(t, err)
	require.False(t, found.Matched)
	require.Equal(t, "pending", found.Report.Status)

	lost, err := fixture.reports.Submit(ctx, "user-a", laptopRequest("lost", "silver laptop with sticker"))
	require.NoError(t, err)
	require.True(t, lost.Matched)
	require.Equal(t, "matched", lost.Report.Status)
	require.Equal(t, 1, lost.Report.MatchCount)
	require.NotNil(t, lost.Opponent)
	require.Equal(t, found.Report.ID, lost.Opponent.Report.ID)
	require.Equal(t, 7, lost.Opponent.Score)
	require.NotNil(t, lost.Notification)
	require.Equal(t, "A found report closely matches your lost report", lost.Notification.Message)

	opponent, err := fixture.reportRepo.FindByID(ctx, found.Report.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusMatched, opponent.Status)
	require.Equal(t, lost.Report.ID, opponent.MatchedReportID)

	feed, err := fixture.notifications.List(ctx, "user-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	require.EqualValues(t, 1, feed.UnreadCount)
	require.Equal(t, found.Report.ID, feed.Items[0].Metadata["opponent_report_id"])

	_, err = fixture.notifications.MarkRead(ctx, feed.Items[0].ID, "user-a")
	require.NoError(t, err)
	unread, err := fixture.notifications.UnreadCount(ctx, "user-a")
	require.NoError(t, err)
	require.Zero(t, unread)

	other, err := fixture.notifications.List(ctx, "user-b", 10, 0)
	require.NoError(t, err)
	require.Empty(t, other.Items)
}

func TestSubmitRejectsDuplicateBeforeStore(t *testing.T) {
	fixture := newReportFixture(t)
	ctx := context.Background()

	request := dto.ReportSubmitRequest{Kind: "lost", Category: "bag", Location: "station", Date: time.Now()}
	_, err := fixture.reports.Submit(ctx, "user-a", request)
	require.NoError(t, err)

	request.Characteristics = "different description"
	_, err = fixture.reports.Submit(ctx, "user-a", request)
	require.ErrorIs(t, err, ErrDuplicateReport)

	owned, err := fixture.reports.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, owned, 1)

	// another user may file the same triple
	_, err = fixture.reports.Submit(ctx, "user-b", request)
	require.NoError(t, err)
}

func TestSubmitMapsStoreUniqueViolationToDuplicate(t *testing.T) {
	repo := newReportRepoStub()
	repo.createErr = gorm.ErrDuplicatedKey
	svc := NewReportService(repo, NewMatchService(repo, nil, testLogger()), validator.New(), testLogger())

	_, err := svc.Submit(context.Background(), "user-a", laptopRequest("lost", ""))
	require.ErrorIs(t, err, ErrDuplicateReport)
}

func TestSubmitSurfacesPersistenceFailure(t *testing.T) {
	repo := newReportRepoStub()
	repo.createErr = errors.New("disk full")
	svc := NewReportService(repo, NewMatchService(repo, nil, testLogger()), validator.New(), testLogger())

	_, err := svc.Submit(context.Background(), "user-a", laptopRequest("lost", ""))
	require.ErrorIs(t, err, ErrPersistence)
	require.Empty(t, repo.reports)
}

func TestSubmitValidatesPayload(t *testing.T) {
	fixture := newReportFixture(t)

	_, err := fixture.reports.Submit(context.Background(), "user-a", dto.ReportSubmitRequest{Kind: "stolen", Category: "bag", Date: time.Now()})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = fixture.reports.Submit(context.Background(), "user-a", dto.ReportSubmitRequest{Kind: "lost", Category: "<b></b>", Date: time.Now()})
	require.ErrorAs(t, err, &validationErrs)
}

func TestSubmitSanitisesFreeText(t *testing.T) {
	fixture := newReportFixture(t)

	request := laptopRequest("LOST", "<script>alert(1)</script>laptop with sticker")
	resp, err := fixture.reports.Submit(context.Background(), "user-a", request)
	require.NoError(t, err)
	require.Equal(t, "lost", resp.Report.Kind)
	require.Equal(t, "laptop with sticker", resp.Report.Characteristics)
}

func TestReportGetAndDeleteEnforceOwnership(t *testing.T) {
	fixture := newReportFixture(t)
	ctx := context.Background()

	created, err := fixture.reports.Submit(ctx, "user-a", laptopRequest("lost", ""))
	require.NoError(t, err)

	_, err = fixture.reports.Get(ctx, "user-b", created.Report.ID)
	require.ErrorIs(t, err, ErrNotReportOwner)

	require.ErrorIs(t, fixture.reports.Delete(ctx, "user-b", created.Report.ID), ErrNotReportOwner)
	require.NoError(t, fixture.reports.Delete(ctx, "user-a", created.Report.ID))

	_, err = fixture.reports.Get(ctx, "user-a", created.Report.ID)
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestSweepReachesReportsBehindUnmatchableBacklog(t *testing.T) {
	db := newServiceTestDB(t)
	ctx := context.Background()
	reportRepo := repository.NewReportRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, validator.New(), testLogger())
	matcher := NewMatchService(reportRepo, notifications, testLogger())

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	backlog := matchSweepBatchSize + 50
	for i := 0; i < backlog; i++ {
		require.NoError(t, reportRepo.Create(ctx, &models.Report{
			OwnerID:   fmt.Sprintf("owner-%03d", i),
			Kind:      models.ReportKindLost,
			Category:  "umbrella",
			Location:  "platform 2",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	// Stored directly, as if their submission scans had failed.
	lost := lostLaptop("", "user-a")
	lost.CreatedAt = base.Add(time.Hour)
	require.NoError(t, reportRepo.Create(ctx, &lost))
	found := foundLaptop("", "user-b")
	found.CreatedAt = base.Add(time.Hour + time.Second)
	require.NoError(t, reportRepo.Create(ctx, &found))

	matched, err := matcher.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, matched)

	matched, err = matcher.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, matched)

	stored, err := reportRepo.FindByID(ctx, lost.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusMatched, stored.Status)
	require.Equal(t, found.ID, stored.MatchedReportID)

	feed, err := notifications.List(ctx, "user-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)

	// The cursor wrapped, so the next sweep starts over at the oldest report.
	matched, err = matcher.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, matched)
}
