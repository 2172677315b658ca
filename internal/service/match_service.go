package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/observability"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

const matchSweepBatchSize = 100

// NotificationPublisher delivers notifications produced by domain events.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// MatchOutcome describes what happened when a report was run through the matcher.
type MatchOutcome struct {
	Report models.Report
	// Matched is true only for the caller that moved the report to matched.
	Matched bool
	// AlreadyMatched is set when a concurrent scan matched the report first.
	AlreadyMatched bool
	Opponent       *ScoredReport
	Matches        []ScoredReport
	Notification   *dto.NotificationResponse
}

// MatchService pairs complementary reports and drives their status transitions.
type MatchService interface {
	FindMatches(ctx context.Context, report models.Report) ([]ScoredReport, error)
	ProcessSubmission(ctx context.Context, report models.Report) (MatchOutcome, error)
	Sweep(ctx context.Context) (int, error)
	Start(ctx context.Context, interval time.Duration)
}

type matchService struct {
	reports       repository.ReportRepository
	notifications NotificationPublisher
	status        StatusMachine
	logger        zerolog.Logger
	tracer        trace.Tracer

	sweepMu     sync.Mutex
	sweepCursor repository.ReportCursor
}

// NewMatchService constructs the matching engine.
func NewMatchService(reports repository.ReportRepository, notifications NotificationPublisher, logger zerolog.Logger) MatchService {
	return &matchService{
		reports:       reports,
		notifications: notifications,
		logger:        logger.With().Str("component", "match_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/lostfound-go-api/internal/service/match"),
	}
}

func (s *matchService) FindMatches(ctx context.Context, report models.Report) ([]ScoredReport, error) {
	candidates, err := s.reports.ListCandidates(ctx, repository.CandidateFilter{
		Kind:         report.Kind.Opposite(),
		Category:     report.Category,
		ExcludeOwner: report.OwnerID,
	})
	if err != nil {
		return nil, err
	}

	return rankMatches(report, candidates), nil
}

func (s *matchService) ProcessSubmission(ctx context.Context, report models.Report) (MatchOutcome, error) {
	outcome := MatchOutcome{Report: report}
	if report.Status != models.ReportStatusPending {
		return outcome, nil
	}

	spanCtx, span := s.tracer.Start(ctx, "match.process", trace.WithAttributes(
		attribute.String("report.id", report.ID),
		attribute.String("report.kind", string(report.Kind)),
		attribute.String("report.category", report.Category),
	))
	defer span.End()

	matches, err := s.FindMatches(spanCtx, report)
	if err != nil {
		span.RecordError(err)
		observability.MatchScanFailures().Inc()
		s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("candidate scan failed, keeping report pending")
		return outcome, nil
	}
	if len(matches) == 0 {
		return outcome, nil
	}

	primary := matches[0]
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.Report.ID)
	}

	won := false
	err = s.reports.Transaction(spanCtx, func(tx repository.ReportRepository) error {
		affected, err := s.status.Apply(spanCtx, tx, models.StatusEventMatchFound, report.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		won = true

		if _, err := s.status.Apply(spanCtx, tx, models.StatusEventMatchFound, ids...); err != nil {
			return err
		}
		if _, err := tx.LinkMatchedReport(spanCtx, ids, report.ID); err != nil {
			return err
		}
		return tx.UpdateMatchSummary(spanCtx, report.ID, len(matches), primary.Report.ID)
	})
	if err != nil {
		span.RecordError(err)
		observability.MatchScanFailures().Inc()
		s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("match transition failed, keeping report pending")
		return outcome, nil
	}

	if !won {
		if current, err := s.reports.FindByID(spanCtx, report.ID); err == nil {
			outcome.Report = current
		}
		outcome.AlreadyMatched = true
		return outcome, nil
	}

	report.Status = models.ReportStatusMatched
	report.MatchCount = len(matches)
	report.MatchedReportID = primary.Report.ID
	primary.Report.Status = models.ReportStatusMatched

	outcome.Report = report
	outcome.Matched = true
	outcome.Opponent = &primary
	outcome.Matches = matches

	observability.MatchesFound().WithLabelValues(string(report.Kind)).Inc()
	s.logger.Info().
		Str("report_id", report.ID).
		Str("opponent_report_id", primary.Report.ID).
		Int("score", primary.Score).
		Int("match_count", len(matches)).
		Msg("report matched")

	if s.notifications != nil {
		notification, err := s.notifications.Publish(spanCtx, dto.NotificationCreateRequest{
			UserID:  report.OwnerID,
			Type:    models.NotificationTypeMatchFound,
			Message: fmt.Sprintf("A %s report closely matches your %s report", primary.Report.Kind, report.Kind),
			Metadata: map[string]string{
				"report_id":          report.ID,
				"opponent_report_id": primary.Report.ID,
				"match_count":        strconv.Itoa(len(matches)),
			},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("report_id", report.ID).Msg("failed to dispatch match notification")
		} else {
			outcome.Notification = &notification
		}
	}

	return outcome, nil
}

// Sweep re-runs matching for one batch of pending reports, healing submissions whose scan
// failed. Successive calls walk the pending backlog from oldest to newest and wrap around
// once the end is reached, so reports that never match cannot starve newer ones.
func (s *matchService) Sweep(ctx context.Context) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	pending, err := s.reports.ListByStatus(ctx, models.ReportStatusPending, s.sweepCursor, matchSweepBatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) < matchSweepBatchSize {
		s.sweepCursor = repository.ReportCursor{}
	} else {
		last := pending[len(pending)-1]
		s.sweepCursor = repository.ReportCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	matched := 0
	for _, report := range pending {
		if ctx.Err() != nil {
			return matched, ctx.Err()
		}
		outcome, err := s.ProcessSubmission(ctx, report)
		if err != nil {
			return matched, err
		}
		if outcome.Matched {
			matched++
		}
	}

	return matched, nil
}

func (s *matchService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				matched, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Warn().Err(err).Msg("match sweep failed")
					continue
				}
				if matched > 0 {
					s.logger.Info().Int("matched", matched).Msg("match sweep paired pending reports")
				}
			}
		}
	}()
}
