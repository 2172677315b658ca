package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/middleware"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
	"github.com/noah-isme/lostfound-go-api/internal/realtime"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

const chatRedisTTL = 30 * time.Minute

// ErrEmptyMessage indicates the message had no content left after sanitisation.
var ErrEmptyMessage = errors.New("message content empty after sanitization")

// ChatService persists chat messages and pushes them to thread subscribers.
type ChatService interface {
	Send(ctx context.Context, threadID, senderID string, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error)
	History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error)
	Subscribe(threadID string) (<-chan dto.ChatMessageResponse, func())
	LastMessage(ctx context.Context, threadID string) *dto.ChatMessageResponse
}

type chatService struct {
	repo       repository.ChatRepository
	threads    repository.ChatThreadRepository
	broker     *realtime.Broker[dto.ChatMessageResponse]
	redis      *redis.Client
	redisCache string
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	sanitizer  *bluemonday.Policy
}

// NewChatService creates a chat service. redisClient and broker may be nil.
func NewChatService(repo repository.ChatRepository, threads repository.ChatThreadRepository, broker *realtime.Broker[dto.ChatMessageResponse], redisClient *redis.Client, channelBase string, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	cachePrefix := ""
	if channelBase != "" {
		cachePrefix = channelBase + ":chat:last"
	}

	return &chatService{
		repo:       repo,
		threads:    threads,
		broker:     broker,
		redis:      redisClient,
		redisCache: cachePrefix,
		validator:  validate,
		logger:     logger.With().Str("component", "chat_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/lostfound-go-api/internal/service/chat"),
		sanitizer:  sanitizer,
	}
}

func (s *chatService) Send(ctx context.Context, threadID, senderID string, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	if _, err := authorizeThread(ctx, s.threads, threadID, senderID); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if clean == "" {
		return dto.ChatMessageResponse{}, ErrEmptyMessage
	}

	attrs := []attribute.KeyValue{
		attribute.String("chat.thread_id", threadID),
		attribute.String("chat.sender_id", senderID),
	}
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.ChatMessage{
		ThreadID: threadID,
		SenderID: senderID,
		Content:  clean,
		ImageURL: strings.TrimSpace(payload.ImageURL),
	}

	if err := s.repo.Save(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, persistenceError("save chat message", err)
	}

	response := dto.NewChatMessageResponse(model)
	response.LocalID = strings.TrimSpace(payload.LocalID)
	s.cacheLastMessage(spanCtx, response)
	if s.broker != nil {
		if err := s.broker.Publish(spanCtx, threadID, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay chat message to other nodes")
		}
	}

	observability.ChatMessagesSent().WithLabelValues("local").Inc()

	return response, nil
}

// History returns the complete persisted history of a thread ordered by (created_at, id).
func (s *chatService) History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	if _, err := authorizeThread(ctx, s.threads, query.ThreadID, query.UserID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListByThread(ctx, query.ThreadID, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	return dto.NewChatMessageResponseSlice(messages), nil
}

func (s *chatService) Subscribe(threadID string) (<-chan dto.ChatMessageResponse, func()) {
	if s.broker == nil {
		ch := make(chan dto.ChatMessageResponse)
		return ch, func() { close(ch) }
	}
	return s.broker.Subscribe(threadID)
}

// LastMessage serves thread previews from the Redis cache, falling back to the store.
func (s *chatService) LastMessage(ctx context.Context, threadID string) *dto.ChatMessageResponse {
	if cached := s.fetchLastMessage(ctx, threadID); cached != nil {
		return cached
	}

	latest, err := s.repo.LatestByThread(ctx, threadID)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn().Err(err).Str("thread_id", threadID).Msg("failed to load latest chat message")
		}
		return nil
	}

	response := dto.NewChatMessageResponse(latest)
	s.cacheLastMessage(ctx, response)
	return &response
}

func (s *chatService) cacheLastMessage(ctx context.Context, message dto.ChatMessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, message.ThreadID)
	if err := s.redis.Set(ctx, key, payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, threadID string) *dto.ChatMessageResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, threadID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.ChatMessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached chat message")
		return nil
	}

	return &message
}
