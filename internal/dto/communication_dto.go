package dto

import (
	"time"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// ChatSendRequest represents the payload sent from clients to post a chat message.
type ChatSendRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=4000"`
	ImageURL string `json:"image_url" validate:"omitempty,url,max=512"`
	// LocalID echoes the client's optimistic identifier back on websocket sessions.
	LocalID string `json:"local_id" validate:"omitempty,max=64"`
}

// ChatHistoryQuery represents query filters for retrieving chat history.
type ChatHistoryQuery struct {
	ThreadID string `query:"thread_id" validate:"required,uuid"`
	UserID   string `validate:"required,max=64"`
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// LocalID echoes the sender's optimistic identifier on the send response and push.
	LocalID string `json:"local_id,omitempty"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        message.ID,
		ThreadID:  message.ThreadID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		ImageURL:  message.ImageURL,
		CreatedAt: message.CreatedAt,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// ChatThreadResponse describes a chat thread from the caller's point of view.
type ChatThreadResponse struct {
	ID              string               `json:"id"`
	ParticipantLow  string               `json:"participant_low"`
	ParticipantHigh string               `json:"participant_high"`
	CounterpartID   string               `json:"counterpart_id,omitempty"`
	ReportID        string               `json:"report_id"`
	CreatedAt       time.Time            `json:"created_at"`
	LastMessage     *ChatMessageResponse `json:"last_message,omitempty"`
}

// NewChatThreadResponse converts a thread model to DTO for the given viewer.
func NewChatThreadResponse(thread models.ChatThread, viewerID string) ChatThreadResponse {
	response := ChatThreadResponse{
		ID:              thread.ID,
		ParticipantLow:  thread.ParticipantLow,
		ParticipantHigh: thread.ParticipantHigh,
		ReportID:        thread.ReportID,
		CreatedAt:       thread.CreatedAt,
	}
	if thread.HasParticipant(viewerID) {
		response.CounterpartID = thread.Counterpart(viewerID)
	}
	return response
}

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	UserID   string            `json:"user_id" validate:"required,max=64"`
	Type     string            `json:"type" validate:"required,max=64"`
	Message  string            `json:"message" validate:"required,min=1,max=2000"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint              `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NotificationListResponse carries the notification feed plus the derived unread count.
type NotificationListResponse struct {
	Items       []NotificationResponse `json:"items"`
	UnreadCount int64                  `json:"unread_count"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	response := NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if len(model.Metadata) > 0 {
		response.Metadata = make(map[string]string, len(model.Metadata))
		for key, value := range model.Metadata {
			if str, ok := value.(string); ok {
				response.Metadata[key] = str
			}
		}
	}
	return response
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
