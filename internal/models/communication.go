package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationTypeMatchFound marks notifications emitted by the matching engine.
const NotificationTypeMatchFound = "match_found"

// ChatThread is a private conversation between the two owners of a matched pair.
// The participants are stored in lexical order so the triple below is a natural key.
type ChatThread struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	ParticipantLow  string    `gorm:"size:64;not null;uniqueIndex:idx_chat_threads_natural,priority:1" json:"participant_low"`
	ParticipantHigh string    `gorm:"size:64;not null;index;uniqueIndex:idx_chat_threads_natural,priority:2" json:"participant_high"`
	ReportID        string    `gorm:"size:36;not null;uniqueIndex:idx_chat_threads_natural,priority:3" json:"report_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// BeforeCreate assigns the thread identifier.
func (t *ChatThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant reports whether userID is one of the two thread members.
func (t ChatThread) HasParticipant(userID string) bool {
	return userID != "" && (t.ParticipantLow == userID || t.ParticipantHigh == userID)
}

// Counterpart returns the other participant of the thread.
func (t ChatThread) Counterpart(userID string) string {
	if t.ParticipantLow == userID {
		return t.ParticipantHigh
	}
	return t.ParticipantLow
}

// ChatMessage is a persisted message inside a chat thread.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ThreadID  string    `gorm:"size:36;not null;index:idx_chat_messages_thread,priority:1" json:"thread_id"`
	SenderID  string    `gorm:"size:64;not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURL  string    `gorm:"size:512" json:"image_url,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_chat_messages_thread,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the message identifier.
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Notification is a user-visible record produced by a domain event.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"size:64;index" json:"user_id"`
	Type      string            `gorm:"size:64" json:"type"`
	Message   string            `gorm:"type:text" json:"message"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
