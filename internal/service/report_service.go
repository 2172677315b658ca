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
	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

// ReportService accepts report submissions and exposes the owner's report list.
type ReportService interface {
	Submit(ctx context.Context, ownerID string, payload dto.ReportSubmitRequest) (dto.ReportSubmitResponse, error)
	List(ctx context.Context, ownerID string) ([]dto.ReportResponse, error)
	Get(ctx context.Context, ownerID, id string) (dto.ReportResponse, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type reportService struct {
	reports   repository.ReportRepository
	matcher   MatchService
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewReportService constructs the submission flow.
func NewReportService(reports repository.ReportRepository, matcher MatchService, validate *validator.Validate, logger zerolog.Logger) ReportService {
	return &reportService{
		reports:   reports,
		matcher:   matcher,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "report_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/lostfound-go-api/internal/service/report"),
	}
}

func (s *reportService) Submit(ctx context.Context, ownerID string, payload dto.ReportSubmitRequest) (dto.ReportSubmitResponse, error) {
	payload = s.sanitize(payload)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReportSubmitResponse{}, err
	}

	kind, err := models.ParseReportKind(payload.Kind)
	if err != nil {
		return dto.ReportSubmitResponse{}, ErrInvalidReportKind
	}

	spanCtx, span := s.tracer.Start(ctx, "reports.submit", trace.WithAttributes(
		attribute.String("report.kind", string(kind)),
		attribute.String("report.category", payload.Category),
	))
	defer span.End()

	report := models.Report{
		OwnerID:         ownerID,
		Kind:            kind,
		Category:        payload.Category,
		Brand:           payload.Brand,
		Model:           payload.Model,
		Color:           payload.Color,
		Characteristics: payload.Characteristics,
		Location:        payload.Location,
		Date:            payload.Date,
		PhotoURL:        payload.PhotoURL,
	}

	existing, err := s.reports.ListByOwner(spanCtx, ownerID)
	if err != nil {
		span.RecordError(err)
		return dto.ReportSubmitResponse{}, persistenceError("load owner reports", err)
	}
	if IsDuplicate(report, existing) {
		observability.DuplicateReportsRejected().Inc()
		return dto.ReportSubmitResponse{}, ErrDuplicateReport
	}

	if err := s.reports.Create(spanCtx, &report); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.DuplicateReportsRejected().Inc()
			return dto.ReportSubmitResponse{}, ErrDuplicateReport
		}
		span.RecordError(err)
		return dto.ReportSubmitResponse{}, persistenceError("create report", err)
	}

	observability.ReportsSubmitted().WithLabelValues(string(kind)).Inc()
	s.logger.Info().Str("report_id", report.ID).Str("kind", string(kind)).Str("category", report.Category).Msg("report submitted")

	outcome, err := s.matcher.ProcessSubmission(spanCtx, report)
	if err != nil {
		s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("matching failed after submission")
		outcome = MatchOutcome{Report: report}
	}

	response := dto.ReportSubmitResponse{
		Report:       dto.NewReportResponse(outcome.Report),
		Matched:      outcome.Matched,
		Notification: outcome.Notification,
	}
	if outcome.Opponent != nil {
		response.Opponent = &dto.MatchedReportResponse{
			Report: dto.NewReportResponse(outcome.Opponent.Report),
			Score:  outcome.Opponent.Score,
		}
	}

	return response, nil
}

func (s *reportService) List(ctx context.Context, ownerID string) ([]dto.ReportResponse, error) {
	reports, err := s.reports.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewReportResponseSlice(reports), nil
}

func (s *reportService) Get(ctx context.Context, ownerID, id string) (dto.ReportResponse, error) {
	report, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return dto.ReportResponse{}, err
	}
	return dto.NewReportResponse(report), nil
}

func (s *reportService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrReportNotFound
		}
		return persistenceError("delete report", err)
	}

	s.logger.Info().Str("report_id", id).Msg("report deleted")
	return nil
}

func (s *reportService) owned(ctx context.Context, ownerID, id string) (models.Report, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return models.Report{}, ErrReportNotFound
		}
		return models.Report{}, err
	}
	if report.OwnerID != ownerID {
		return models.Report{}, ErrNotReportOwner
	}
	return report, nil
}

func (s *reportService) sanitize(payload dto.ReportSubmitRequest) dto.ReportSubmitRequest {
	clean := func(value string) string {
		return strings.TrimSpace(s.sanitizer.Sanitize(value))
	}

	payload.Kind = strings.ToLower(strings.TrimSpace(payload.Kind))
	payload.Category = clean(payload.Category)
	payload.Brand = clean(payload.Brand)
	payload.Model = clean(payload.Model)
	payload.Color = clean(payload.Color)
	payload.Characteristics = clean(payload.Characteristics)
	payload.Location = clean(payload.Location)
	payload.PhotoURL = strings.TrimSpace(payload.PhotoURL)
	return payload
}
