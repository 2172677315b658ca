package handler

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/chatsync"
	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/middleware"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
	"github.com/noah-isme/lostfound-go-api/internal/service"
	"github.com/noah-isme/lostfound-go-api/internal/utils"
)

const chatWriteTimeout = 10 * time.Second

// ChatHandler wires chat endpoints including the websocket session.
type ChatHandler struct {
	chat      service.ChatService
	threads   service.ChatThreadService
	logger    zerolog.Logger
	reconcile time.Duration
}

// NewChatHandler creates a chat handler instance. reconcile is how often an open websocket
// session re-reads the persisted history.
func NewChatHandler(chat service.ChatService, threads service.ChatThreadService, logger zerolog.Logger, reconcile time.Duration) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		threads:   threads,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
		reconcile: reconcile,
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/threads", middleware.WithAuth(h.listThreads))
	router.Get("/threads/:id/messages", middleware.WithAuth(h.history))
	router.Post("/threads/:id/messages", middleware.WithAuth(h.send))

	router.Use("/ws", middleware.WithAuth(h.upgrade))
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ChatHandler) listThreads(c *fiber.Ctx) error {
	threads, err := h.threads.ListForUser(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.OK(c, threads, "chat threads", fiber.Map{"total": len(threads)})
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	messages, err := h.chat.History(requestContext(c), dto.ChatHistoryQuery{
		ThreadID: c.Params("id"),
		UserID:   middleware.CurrentUserID(c),
	})
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat history", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	var payload dto.ChatSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.chat.Send(requestContext(c), c.Params("id"), middleware.CurrentUserID(c), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

// upgrade authorises the caller for the thread before switching protocols so rejected
// sessions get a plain HTTP status.
func (h *ChatHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	threadID := strings.TrimSpace(c.Query("thread_id"))
	if threadID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "thread_id required")
	}

	ctx := requestContext(c)
	if _, err := h.threads.Authorize(ctx, threadID, middleware.CurrentUserID(c)); err != nil {
		return writeServiceError(c, h.logger, err)
	}

	c.Locals("thread_id", threadID)
	c.Locals("request_ctx", ctx)
	return c.Next()
}

// chatCommand is a client frame. Type is "send" (the default) or "retry".
type chatCommand struct {
	Type string `json:"type"`
	dto.ChatSendRequest
}

// chatFrame is a server frame: "snapshot" on connect, then "upsert", "remove" or "error".
type chatFrame struct {
	Type    string           `json:"type"`
	Entry   *chatsync.Entry  `json:"entry,omitempty"`
	Entries []chatsync.Entry `json:"entries,omitempty"`
	Message string           `json:"message,omitempty"`
}

type chatSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *chatSession) write(frame chatFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
	return s.conn.WriteJSON(frame)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	threadID, _ := conn.Locals("thread_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	logger := h.logger.With().Str("user_id", userID).Str("thread_id", threadID).Logger()

	synchronizer, err := chatsync.New(chatsync.Config{
		ThreadID:          threadID,
		UserID:            userID,
		Store:             h.chat,
		Push:              h.chat,
		ReconcileInterval: h.reconcile,
		EventBuffer:       256,
		Logger:            h.logger,
		Retryable:         service.IsRetryable,
	})
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}

	observability.ChatConnectionsActive().Inc()
	defer observability.ChatConnectionsActive().Dec()
	logger.Info().Msg("chat websocket connected")

	session := &chatSession{conn: conn}
	if err := synchronizer.Reconcile(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load chat history")
	}
	if err := session.write(chatFrame{Type: "snapshot", Entries: synchronizer.Snapshot()}); err != nil {
		synchronizer.Close()
		return
	}

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		if err := synchronizer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("chat synchronizer stopped")
		}
	}()
	go func() {
		defer workers.Done()
		h.forwardEvents(ctx, synchronizer, session)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.handleCommand(ctx, synchronizer, session, data)
	}

	synchronizer.Close()
	cancel()
	workers.Wait()
	logger.Info().Msg("chat websocket disconnected")
}

func (h *ChatHandler) handleCommand(ctx context.Context, synchronizer *chatsync.Synchronizer, session *chatSession, data []byte) {
	var command chatCommand
	if err := json.Unmarshal(data, &command); err != nil {
		_ = session.write(chatFrame{Type: "error", Message: "invalid frame"})
		return
	}

	var err error
	switch command.Type {
	case "", "send":
		_, err = synchronizer.Send(ctx, command.ChatSendRequest)
	case "retry":
		_, err = synchronizer.Retry(ctx, command.LocalID)
	default:
		_ = session.write(chatFrame{Type: "error", Message: "unknown frame type"})
		return
	}
	if err != nil {
		_ = session.write(chatFrame{Type: "error", Message: err.Error()})
	}
}

func (h *ChatHandler) forwardEvents(ctx context.Context, synchronizer *chatsync.Synchronizer, session *chatSession) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-synchronizer.Done():
			return
		case event := <-synchronizer.Events():
			entry := event.Entry
			if err := session.write(chatFrame{Type: string(event.Kind), Entry: &entry}); err != nil {
				h.logger.Debug().Err(err).Msg("failed to write chat event")
				return
			}
		}
	}
}
