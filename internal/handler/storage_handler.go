package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/middleware"
	"github.com/noah-isme/lostfound-go-api/internal/service"
	"github.com/noah-isme/lostfound-go-api/internal/utils"
)

// StorageHandler exposes the bulk reset of a user's stored data.
type StorageHandler struct {
	service service.StorageService
	logger  zerolog.Logger
}

// NewStorageHandler constructs a storage handler.
func NewStorageHandler(service service.StorageService, logger zerolog.Logger) *StorageHandler {
	return &StorageHandler{
		service: service,
		logger:  logger.With().Str("component", "storage_handler").Logger(),
	}
}

// Register binds the storage routes.
func (h *StorageHandler) Register(router fiber.Router) {
	router.Delete("/", middleware.WithAuth(h.reset))
}

func (h *StorageHandler) reset(c *fiber.Ctx) error {
	result, err := h.service.Reset(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "storage reset", result)
}
