package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

// StorageService wipes everything a user has stored.
type StorageService interface {
	Reset(ctx context.Context, userID string) (dto.StorageResetResponse, error)
}

type storageService struct {
	reports       repository.ReportRepository
	messages      repository.ChatRepository
	threads       repository.ChatThreadRepository
	notifications repository.NotificationRepository
	logger        zerolog.Logger
}

// NewStorageService constructs the bulk reset service.
func NewStorageService(reports repository.ReportRepository, messages repository.ChatRepository, threads repository.ChatThreadRepository, notifications repository.NotificationRepository, logger zerolog.Logger) StorageService {
	return &storageService{
		reports:       reports,
		messages:      messages,
		threads:       threads,
		notifications: notifications,
		logger:        logger.With().Str("component", "storage_service").Logger(),
	}
}

// Reset removes the user's reports, sent messages, threads and notifications. Each step is
// independent; a failure stops the reset and the caller may simply run it again.
func (s *storageService) Reset(ctx context.Context, userID string) (dto.StorageResetResponse, error) {
	var (
		result dto.StorageResetResponse
		err    error
	)

	if result.Reports, err = s.reports.DeleteByOwner(ctx, userID); err != nil {
		return result, persistenceError("delete reports", err)
	}
	if result.Messages, err = s.messages.DeleteBySender(ctx, userID); err != nil {
		return result, persistenceError("delete chat messages", err)
	}
	if result.Threads, err = s.threads.DeleteByParticipant(ctx, userID); err != nil {
		return result, persistenceError("delete chat threads", err)
	}
	if result.Notifications, err = s.notifications.DeleteByUser(ctx, userID); err != nil {
		return result, persistenceError("delete notifications", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int64("reports", result.Reports).
		Int64("messages", result.Messages).
		Int64("threads", result.Threads).
		Int64("notifications", result.Notifications).
		Msg("user storage reset")

	return result, nil
}
