package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/handler"
	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/service"
)

type stubReportService struct {
	lastOwner   string
	lastPayload dto.ReportSubmitRequest
	response    dto.ReportSubmitResponse
	reports     []dto.ReportResponse
	err         error
}

func (s *stubReportService) Submit(_ context.Context, ownerID string, payload dto.ReportSubmitRequest) (dto.ReportSubmitResponse, error) {
	s.lastOwner = ownerID
	s.lastPayload = payload
	return s.response, s.err
}

func (s *stubReportService) List(_ context.Context, ownerID string) ([]dto.ReportResponse, error) {
	s.lastOwner = ownerID
	return s.reports, s.err
}

func (s *stubReportService) Get(_ context.Context, ownerID, id string) (dto.ReportResponse, error) {
	s.lastOwner = ownerID
	if s.err != nil {
		return dto.ReportResponse{}, s.err
	}
	return dto.ReportResponse{ID: id, OwnerID: ownerID}, nil
}

func (s *stubReportService) Delete(_ context.Context, ownerID, id string) error {
	s.lastOwner = ownerID
	return s.err
}

type stubThreadService struct {
	thread dto.ChatThreadResponse
	err    error
}

func (s *stubThreadService) GetOrCreate(context.Context, string, string, string) (models.ChatThread, error) {
	return models.ChatThread{}, s.err
}

func (s *stubThreadService) OpenForReport(_ context.Context, userID, reportID string) (dto.ChatThreadResponse, error) {
	return s.thread, s.err
}

func (s *stubThreadService) ListForUser(context.Context, string) ([]dto.ChatThreadResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []dto.ChatThreadResponse{s.thread}, nil
}

func (s *stubThreadService) Authorize(context.Context, string, string) (models.ChatThread, error) {
	return models.ChatThread{}, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    map[string]any  `json:"meta"`
	Details map[string]any  `json:"details"`
}

func asUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out envelope
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func newReportApp(reports service.ReportService, threads service.ChatThreadService, userID string) *fiber.App {
	app := fiber.New()
	handler.NewReportHandler(reports, threads, zerolog.New(io.Discard)).Register(app.Group("/api/v1/reports", asUser(userID)))
	return app
}

func postJSON(t *testing.T, app *fiber.App, target string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestReportHandler_SubmitMatched(t *testing.T) {
	svc := &stubReportService{response: dto.ReportSubmitResponse{
		Report:   dto.ReportResponse{ID: "r1", Kind: "lost", Status: "matched"},
		Matched:  true,
		Opponent: &dto.MatchedReportResponse{Report: dto.ReportResponse{ID: "r0"}, Score: 7},
	}}
	app := newReportApp(svc, &stubThreadService{}, "user-a")

	resp := postJSON(t, app, "/api/v1/reports", map[string]any{
		"kind":     "lost",
		"category": "electronics",
		"brand":    "acer",
		"date":     "2026-02-14T00:00:00Z",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	require.True(t, body.Success)
	require.Equal(t, "report submitted and matched", body.Message)

	var data dto.ReportSubmitResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Equal(t, 7, data.Opponent.Score)
	require.Equal(t, "user-a", svc.lastOwner)
	require.Equal(t, "acer", svc.lastPayload.Brand)
}

func TestReportHandler_SubmitErrors(t *testing.T) {
	validationErr := validator.New().Struct(dto.ReportSubmitRequest{})

	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "duplicate", err: service.ErrDuplicateReport, statusCode: fiber.StatusConflict},
		{name: "validation", err: validationErr, statusCode: fiber.StatusBadRequest},
		{name: "kind", err: service.ErrInvalidReportKind, statusCode: fiber.StatusBadRequest},
		{name: "persistence", err: errors.Join(service.ErrPersistence, errors.New("disk full")), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newReportApp(&stubReportService{err: tc.err}, &stubThreadService{}, "user-a")

			resp := postJSON(t, app, "/api/v1/reports", map[string]any{"kind": "lost", "category": "bag"})
			require.Equal(t, tc.statusCode, resp.StatusCode)

			body := decodeEnvelope(t, resp)
			require.False(t, body.Success)
			if tc.name == "validation" {
				require.Equal(t, "required", body.Details["category"])
			}
			if tc.name == "persistence" {
				require.Equal(t, "internal server error", body.Message)
			}
		})
	}
}

func TestReportHandler_RequiresIdentity(t *testing.T) {
	svc := &stubReportService{}
	app := newReportApp(svc, &stubThreadService{}, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, svc.lastOwner)
}

func TestReportHandler_ListIncludesTotal(t *testing.T) {
	svc := &stubReportService{reports: []dto.ReportResponse{{ID: "r1"}, {ID: "r2"}}}
	app := newReportApp(svc, &stubThreadService{}, "user-a")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	require.EqualValues(t, 2, body.Meta["total"])
}

func TestReportHandler_OwnershipAndMatchErrors(t *testing.T) {
	app := newReportApp(&stubReportService{err: service.ErrNotReportOwner}, &stubThreadService{err: service.ErrReportNotMatched}, "user-b")

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/reports/r1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reports/r1/chat", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestReportHandler_OpenChat(t *testing.T) {
	threads := &stubThreadService{thread: dto.ChatThreadResponse{ID: "t1", ReportID: "r1", CounterpartID: "user-b"}}
	app := newReportApp(&stubReportService{}, threads, "user-a")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reports/r1/chat", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	var thread dto.ChatThreadResponse
	require.NoError(t, json.Unmarshal(body.Data, &thread))
	require.Equal(t, "t1", thread.ID)
	require.Equal(t, "user-b", thread.CounterpartID)
}
