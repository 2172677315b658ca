package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

// LastMessageLookup resolves the newest message of a thread for list previews.
type LastMessageLookup interface {
	LastMessage(ctx context.Context, threadID string) *dto.ChatMessageResponse
}

// ChatThreadService is the registry of chat threads between matched report owners.
type ChatThreadService interface {
	GetOrCreate(ctx context.Context, userA, userB, reportID string) (models.ChatThread, error)
	OpenForReport(ctx context.Context, userID, reportID string) (dto.ChatThreadResponse, error)
	ListForUser(ctx context.Context, userID string) ([]dto.ChatThreadResponse, error)
	Authorize(ctx context.Context, threadID, userID string) (models.ChatThread, error)
}

type chatThreadService struct {
	threads  repository.ChatThreadRepository
	reports  repository.ReportRepository
	previews LastMessageLookup
	group    singleflight.Group
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewChatThreadService constructs the thread registry. previews may be nil.
func NewChatThreadService(threads repository.ChatThreadRepository, reports repository.ReportRepository, previews LastMessageLookup, logger zerolog.Logger) ChatThreadService {
	return &chatThreadService{
		threads:  threads,
		reports:  reports,
		previews: previews,
		logger:   logger.With().Str("component", "chat_thread_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/lostfound-go-api/internal/service/chat_thread"),
	}
}

// canonicalPair orders two identities so the smaller one comes first.
func canonicalPair(userA, userB string) (string, string) {
	if userA < userB {
		return userA, userB
	}
	return userB, userA
}

func (s *chatThreadService) GetOrCreate(ctx context.Context, userA, userB, reportID string) (models.ChatThread, error) {
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" || strings.TrimSpace(reportID) == "" {
		return models.ChatThread{}, ErrInvalidThreadKey
	}
	if userA == userB {
		return models.ChatThread{}, ErrSelfChat
	}

	low, high := canonicalPair(userA, userB)
	key := repository.ThreadKey{ParticipantLow: low, ParticipantHigh: high, ReportID: reportID}

	spanCtx, span := s.tracer.Start(ctx, "chat.thread.get_or_create", trace.WithAttributes(
		attribute.String("chat.report_id", reportID),
	))
	defer span.End()

	existing, err := s.threads.FindByKey(spanCtx, key)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		span.RecordError(err)
		return models.ChatThread{}, persistenceError("find chat thread", err)
	}

	flightKey := low + "\x00" + high + "\x00" + reportID
	value, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		thread := models.ChatThread{ParticipantLow: low, ParticipantHigh: high, ReportID: reportID}
		stored, created, err := s.threads.CreateIfAbsent(context.WithoutCancel(spanCtx), &thread)
		if err != nil {
			return models.ChatThread{}, err
		}
		if created {
			observability.ChatThreadsCreated().Inc()
			s.logger.Info().Str("thread_id", stored.ID).Str("report_id", reportID).Msg("chat thread created")
		}
		return stored, nil
	})
	if err != nil {
		span.RecordError(err)
		return models.ChatThread{}, persistenceError("create chat thread", err)
	}

	return value.(models.ChatThread), nil
}

// OpenForReport returns the thread between the caller and the owner of the report their
// report was matched with. The lost-side report id keys the thread so both owners converge.
func (s *chatThreadService) OpenForReport(ctx context.Context, userID, reportID string) (dto.ChatThreadResponse, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if isNotFound(err) {
			return dto.ChatThreadResponse{}, ErrReportNotFound
		}
		return dto.ChatThreadResponse{}, err
	}
	if report.OwnerID != userID {
		return dto.ChatThreadResponse{}, ErrNotReportOwner
	}
	if report.MatchedReportID == "" {
		return dto.ChatThreadResponse{}, ErrReportNotMatched
	}

	opponent, err := s.reports.FindByID(ctx, report.MatchedReportID)
	if err != nil {
		if isNotFound(err) {
			return dto.ChatThreadResponse{}, ErrReportNotMatched
		}
		return dto.ChatThreadResponse{}, err
	}

	lostSide := report.ID
	if report.Kind != models.ReportKindLost {
		lostSide = opponent.ID
	}

	thread, err := s.GetOrCreate(ctx, userID, opponent.OwnerID, lostSide)
	if err != nil {
		return dto.ChatThreadResponse{}, err
	}

	return s.toResponse(ctx, thread, userID), nil
}

func (s *chatThreadService) ListForUser(ctx context.Context, userID string) ([]dto.ChatThreadResponse, error) {
	threads, err := s.threads.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ChatThreadResponse, 0, len(threads))
	for _, thread := range threads {
		out = append(out, s.toResponse(ctx, thread, userID))
	}
	return out, nil
}

func (s *chatThreadService) Authorize(ctx context.Context, threadID, userID string) (models.ChatThread, error) {
	return authorizeThread(ctx, s.threads, threadID, userID)
}

func (s *chatThreadService) toResponse(ctx context.Context, thread models.ChatThread, viewerID string) dto.ChatThreadResponse {
	response := dto.NewChatThreadResponse(thread, viewerID)
	if s.previews != nil {
		response.LastMessage = s.previews.LastMessage(ctx, thread.ID)
	}
	return response
}

func authorizeThread(ctx context.Context, threads repository.ChatThreadRepository, threadID, userID string) (models.ChatThread, error) {
	thread, err := threads.FindByID(ctx, threadID)
	if err != nil {
		if isNotFound(err) {
			return models.ChatThread{}, ErrThreadNotFound
		}
		return models.ChatThread{}, persistenceError("load chat thread", err)
	}
	if !thread.HasParticipant(userID) {
		return models.ChatThread{}, ErrNotThreadParticipant
	}
	return thread, nil
}
