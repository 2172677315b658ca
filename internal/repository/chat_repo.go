package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// ChatRepository persists chat messages for thread history.
type ChatRepository interface {
	Save(ctx context.Context, message *models.ChatMessage) error
	ListByThread(ctx context.Context, threadID string, before time.Time, limit int) ([]models.ChatMessage, error)
	LatestByThread(ctx context.Context, threadID string) (models.ChatMessage, error)
	DeleteBySender(ctx context.Context, senderID string) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Save(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByThread returns up to limit messages in ascending (created_at, id) order. A zero
// limit returns the complete history.
func (r *chatRepository) ListByThread(ctx context.Context, threadID string, before time.Time, limit int) ([]models.ChatMessage, error) {
	query := r.db.WithContext(ctx).Where("thread_id = ?", threadID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.ChatMessage
	if limit <= 0 {
		if err := query.Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
			return nil, err
		}
		return messages, nil
	}

	if limit > 200 {
		limit = 200
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *chatRepository) LatestByThread(ctx context.Context, threadID string) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at DESC, id DESC").First(&message).Error
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

func (r *chatRepository) DeleteBySender(ctx context.Context, senderID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("sender_id = ?", senderID).Delete(&models.ChatMessage{})
	return result.RowsAffected, result.Error
}
