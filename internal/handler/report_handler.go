package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/middleware"
	"github.com/noah-isme/lostfound-go-api/internal/service"
	"github.com/noah-isme/lostfound-go-api/internal/utils"
)

// ReportHandler exposes report submission and the owner's report management.
type ReportHandler struct {
	reports service.ReportService
	threads service.ChatThreadService
	logger  zerolog.Logger
	submit  []fiber.Handler
}

// NewReportHandler constructs the handler. submitGuards run before the submit endpoint,
// typically a rate limiter.
func NewReportHandler(reports service.ReportService, threads service.ChatThreadService, logger zerolog.Logger, submitGuards ...fiber.Handler) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		threads: threads,
		logger:  logger.With().Str("component", "report_handler").Logger(),
		submit:  submitGuards,
	}
}

// Register binds report routes under the provided router group.
func (h *ReportHandler) Register(router fiber.Router) {
	submitChain := append(append([]fiber.Handler{}, h.submit...), middleware.WithAuth(h.create))
	router.Post("/", submitChain...)
	router.Get("/", middleware.WithAuth(h.list))
	router.Get("/:id", middleware.WithAuth(h.get))
	router.Delete("/:id", middleware.WithAuth(h.delete))
	router.Post("/:id/chat", middleware.WithAuth(h.openChat))
}

func (h *ReportHandler) create(c *fiber.Ctx) error {
	var payload dto.ReportSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reports.Submit(requestContext(c), middleware.CurrentUserID(c), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	message := "report submitted"
	if result.Matched {
		message = "report submitted and matched"
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, result)
}

func (h *ReportHandler) list(c *fiber.Ctx) error {
	reports, err := h.reports.List(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.OK(c, reports, "reports", fiber.Map{"total": len(reports)})
}

func (h *ReportHandler) get(c *fiber.Ctx) error {
	report, err := h.reports.Get(requestContext(c), middleware.CurrentUserID(c), c.Params("id"))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "report", report)
}

func (h *ReportHandler) delete(c *fiber.Ctx) error {
	if err := h.reports.Delete(requestContext(c), middleware.CurrentUserID(c), c.Params("id")); err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "report deleted", nil)
}

func (h *ReportHandler) openChat(c *fiber.Ctx) error {
	thread, err := h.threads.OpenForReport(requestContext(c), middleware.CurrentUserID(c), c.Params("id"))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat thread ready", thread)
}
