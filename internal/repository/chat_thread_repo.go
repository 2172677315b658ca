package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// ThreadKey is the natural key of a chat thread.
type ThreadKey struct {
	ParticipantLow  string
	ParticipantHigh string
	ReportID        string
}

// ChatThreadRepository persists chat threads keyed by participant pair and report.
type ChatThreadRepository interface {
	FindByKey(ctx context.Context, key ThreadKey) (models.ChatThread, error)
	FindByID(ctx context.Context, id string) (models.ChatThread, error)
	// CreateIfAbsent inserts the thread unless its natural key already exists, then
	// returns whichever row owns the key.
	CreateIfAbsent(ctx context.Context, thread *models.ChatThread) (models.ChatThread, bool, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.ChatThread, error)
	DeleteByParticipant(ctx context.Context, userID string) (int64, error)
}

type chatThreadRepository struct {
	db *gorm.DB
}

// NewChatThreadRepository constructs a thread repository backed by GORM.
func NewChatThreadRepository(db *gorm.DB) ChatThreadRepository {
	return &chatThreadRepository{db: db}
}

func (r *chatThreadRepository) FindByKey(ctx context.Context, key ThreadKey) (models.ChatThread, error) {
	var thread models.ChatThread
	err := r.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ? AND report_id = ?", key.ParticipantLow, key.ParticipantHigh, key.ReportID).
		First(&thread).Error
	if err != nil {
		return models.ChatThread{}, err
	}
	return thread, nil
}

func (r *chatThreadRepository) FindByID(ctx context.Context, id string) (models.ChatThread, error) {
	var thread models.ChatThread
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error; err != nil {
		return models.ChatThread{}, err
	}
	return thread, nil
}

func (r *chatThreadRepository) CreateIfAbsent(ctx context.Context, thread *models.ChatThread) (models.ChatThread, bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "participant_low"},
			{Name: "participant_high"},
			{Name: "report_id"},
		},
		DoNothing: true,
	}).Create(thread)
	if result.Error != nil {
		return models.ChatThread{}, false, result.Error
	}

	created := result.RowsAffected > 0
	stored, err := r.FindByKey(ctx, ThreadKey{
		ParticipantLow:  thread.ParticipantLow,
		ParticipantHigh: thread.ParticipantHigh,
		ReportID:        thread.ReportID,
	})
	if err != nil {
		return models.ChatThread{}, false, err
	}
	return stored, created, nil
}

func (r *chatThreadRepository) ListByParticipant(ctx context.Context, userID string) ([]models.ChatThread, error) {
	var threads []models.ChatThread
	if err := r.db.WithContext(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("created_at DESC").
		Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *chatThreadRepository) DeleteByParticipant(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Delete(&models.ChatThread{})
	return result.RowsAffected, result.Error
}
