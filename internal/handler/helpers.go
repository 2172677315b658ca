package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/chatsync"
	"github.com/noah-isme/lostfound-go-api/internal/middleware"
	"github.com/noah-isme/lostfound-go-api/internal/service"
	"github.com/noah-isme/lostfound-go-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors are logged and
// reported as 500 without leaking their text.
func writeServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	if details := validationDetails(err); details != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
	}

	switch {
	case errors.Is(err, service.ErrDuplicateReport),
		errors.Is(err, service.ErrReportNotMatched):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidReportKind),
		errors.Is(err, service.ErrSelfChat),
		errors.Is(err, service.ErrInvalidThreadKey),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, chatsync.ErrEmptyText):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrThreadNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotReportOwner),
		errors.Is(err, service.ErrNotThreadParticipant):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
