package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

// threadRepoStub enforces the natural key like the unique index does.
type threadRepoStub struct {
	mu      sync.Mutex
	threads map[string]models.ChatThread
	creates int
}

func newThreadRepoStub() *threadRepoStub {
	return &threadRepoStub{threads: make(map[string]models.ChatThread)}
}

func threadKey(low, high, reportID string) string {
	return low + "|" + high + "|" + reportID
}

func (r *threadRepoStub) FindByKey(ctx context.Context, key repository.ThreadKey) (models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[threadKey(key.ParticipantLow, key.ParticipantHigh, key.ReportID)]
	if !ok {
		return models.ChatThread{}, gorm.ErrRecordNotFound
	}
	return thread, nil
}

func (r *threadRepoStub) FindByID(ctx context.Context, id string) (models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, thread := range r.threads {
		if thread.ID == id {
			return thread, nil
		}
	}
	return models.ChatThread{}, gorm.ErrRecordNotFound
}

func (r *threadRepoStub) CreateIfAbsent(ctx context.Context, thread *models.ChatThread) (models.ChatThread, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := threadKey(thread.ParticipantLow, thread.ParticipantHigh, thread.ReportID)
	if existing, ok := r.threads[key]; ok {
		return existing, false, nil
	}
	thread.ID = uuid.NewString()
	thread.CreatedAt = time.Now().UTC()
	r.threads[key] = *thread
	r.creates++
	return *thread, true, nil
}

func (r *threadRepoStub) ListByParticipant(ctx context.Context, userID string) ([]models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatThread
	for _, thread := range r.threads {
		if thread.HasParticipant(userID) {
			out = append(out, thread)
		}
	}
	return out, nil
}

func (r *threadRepoStub) DeleteByParticipant(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for key, thread := range r.threads {
		if thread.HasParticipant(userID) {
			delete(r.threads, key)
			affected++
		}
	}
	return affected, nil
}

func (r *threadRepoStub) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

type previewStub struct{}

func (previewStub) LastMessage(ctx context.Context, threadID string) *dto.ChatMessageResponse {
	return &dto.ChatMessageResponse{ID: "m-last", ThreadID: threadID, Content: "see you at the desk"}
}

func TestGetOrCreateConcurrentCallersShareOneThread(t *testing.T) {
	threads := newThreadRepoStub()
	svc := NewChatThreadService(threads, newReportRepoStub(), nil, testLogger())

	const callers = 32
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userA, userB := "user-a", "user-b"
			if i%2 == 1 {
				userA, userB = userB, userA
			}
			thread, err := svc.GetOrCreate(context.Background(), userA, userB, "report-1")
			ids[i], errs[i] = thread.ID, err
		}(i)
	}
	wg.Wait()

	require.NoError(t, errors.Join(errs...))
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	require.Equal(t, 1, threads.createCount())
}

func TestGetOrCreateCanonicalisesPair(t *testing.T) {
	threads := newThreadRepoStub()
	svc := NewChatThreadService(threads, newReportRepoStub(), nil, testLogger())

	first, err := svc.GetOrCreate(context.Background(), "zoe", "adam", "report-1")
	require.NoError(t, err)
	require.Equal(t, "adam", first.ParticipantLow)
	require.Equal(t, "zoe", first.ParticipantHigh)

	second, err := svc.GetOrCreate(context.Background(), "adam", "zoe", "report-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	other, err := svc.GetOrCreate(context.Background(), "adam", "zoe", "report-2")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestGetOrCreateRejectsSelfChat(t *testing.T) {
	threads := newThreadRepoStub()
	svc := NewChatThreadService(threads, newReportRepoStub(), nil, testLogger())

	_, err := svc.GetOrCreate(context.Background(), "user-a", "user-a", "report-1")
	require.ErrorIs(t, err, ErrSelfChat)
	require.Zero(t, threads.createCount())

	_, err = svc.GetOrCreate(context.Background(), "user-a", "", "report-1")
	require.ErrorIs(t, err, ErrInvalidThreadKey)
}

func TestOpenForReportConvergesOnLostSideThread(t *testing.T) {
	lost := lostLaptop("lost-1", "user-a")
	lost.Status = models.ReportStatusMatched
	lost.MatchedReportID = "found-1"
	found := foundLaptop("found-1", "user-b")
	found.Status = models.ReportStatusMatched
	found.MatchedReportID = "lost-1"

	threads := newThreadRepoStub()
	svc := NewChatThreadService(threads, newReportRepoStub(lost, found), previewStub{}, testLogger())

	fromLoser, err := svc.OpenForReport(context.Background(), "user-a", "lost-1")
	require.NoError(t, err)
	require.Equal(t, "lost-1", fromLoser.ReportID)
	require.Equal(t, "user-b", fromLoser.CounterpartID)
	require.NotNil(t, fromLoser.LastMessage)

	fromFinder, err := svc.OpenForReport(context.Background(), "user-b", "found-1")
	require.NoError(t, err)
	require.Equal(t, fromLoser.ID, fromFinder.ID)
	require.Equal(t, "user-a", fromFinder.CounterpartID)
	require.Equal(t, 1, threads.createCount())

	listed, err := svc.ListForUser(context.Background(), "user-b")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, fromLoser.ID, listed[0].ID)
}

func TestOpenForReportValidatesOwnershipAndMatch(t *testing.T) {
	pending := lostLaptop("lost-1", "user-a")
	svc := NewChatThreadService(newThreadRepoStub(), newReportRepoStub(pending), nil, testLogger())

	_, err := svc.OpenForReport(context.Background(), "user-b", "lost-1")
	require.ErrorIs(t, err, ErrNotReportOwner)

	_, err = svc.OpenForReport(context.Background(), "user-a", "lost-1")
	require.ErrorIs(t, err, ErrReportNotMatched)

	_, err = svc.OpenForReport(context.Background(), "user-a", "missing")
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestAuthorizeRejectsOutsiders(t *testing.T) {
	threads := newThreadRepoStub()
	svc := NewChatThreadService(threads, newReportRepoStub(), nil, testLogger())

	thread, err := svc.GetOrCreate(context.Background(), "user-a", "user-b", "report-1")
	require.NoError(t, err)

	_, err = svc.Authorize(context.Background(), thread.ID, "user-a")
	require.NoError(t, err)

	_, err = svc.Authorize(context.Background(), thread.ID, "user-c")
	require.ErrorIs(t, err, ErrNotThreadParticipant)

	_, err = svc.Authorize(context.Background(), "missing", "user-a")
	require.ErrorIs(t, err, ErrThreadNotFound)
}

func TestGetOrCreateAcrossRegistriesSharesOneStoredThread(t *testing.T) {
	db := newServiceTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// Two registries over one store, as two API nodes would run.
	nodes := []ChatThreadService{
		NewChatThreadService(repository.NewChatThreadRepository(db), repository.NewReportRepository(db), nil, testLogger()),
		NewChatThreadService(repository.NewChatThreadRepository(db), repository.NewReportRepository(db), nil, testLogger()),
	}

	const callers = 24
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ids   = make([]string, callers)
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			userA, userB := "finder", "owner"
			if i%2 == 1 {
				userA, userB = userB, userA
			}
			thread, err := nodes[i%len(nodes)].GetOrCreate(context.Background(), userA, userB, "report-lost-1")
			ids[i], errs[i] = thread.ID, err
		}(i)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errors.Join(errs...))
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}

	var stored int64
	require.NoError(t, db.Model(&models.ChatThread{}).Count(&stored).Error)
	require.EqualValues(t, 1, stored)
}
