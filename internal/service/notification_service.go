package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
	"github.com/noah-isme/lostfound-go-api/internal/realtime"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

// ErrNotificationNotFound indicates the notification does not exist for the caller.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService publishes and streams notifications to end users via SSE.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, userID string, limit, offset int) (dto.NotificationListResponse, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
}

type notificationService struct {
	repo      repository.NotificationRepository
	broker    *realtime.Broker[dto.NotificationResponse]
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewNotificationService constructs a notification service. broker may be nil when no
// live delivery is wanted.
func NewNotificationService(repo repository.NotificationRepository, broker *realtime.Broker[dto.NotificationResponse], validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		broker:    broker,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/lostfound-go-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, errors.New("notification message empty after sanitization")
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", payload.Type),
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Notification{
		UserID:  payload.UserID,
		Type:    payload.Type,
		Message: cleanMessage,
	}
	if len(payload.Metadata) > 0 {
		model.Metadata = make(datatypes.JSONMap, len(payload.Metadata))
		for key, value := range payload.Metadata {
			model.Metadata[key] = value
		}
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, persistenceError("create notification", err)
	}

	response := dto.NewNotificationResponse(model)
	if s.broker != nil {
		if err := s.broker.Publish(spanCtx, response.UserID, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay notification to other nodes")
		}
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) (dto.NotificationListResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.NotificationListResponse{}, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:       dto.NewNotificationResponseSlice(notifications),
		UnreadCount: unread,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", userID),
	}
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(attrs...))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		span.RecordError(err)
		if isNotFound(err) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		return dto.NotificationResponse{}, persistenceError("mark notification read", err)
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	if s.broker == nil {
		ch := make(chan dto.NotificationResponse)
		return ch, func() { close(ch) }
	}

	channel, unsubscribe := s.broker.Subscribe(userID)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		unsubscribe()
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}
