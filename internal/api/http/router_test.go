package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/sector-mail-desk/internal/api/http/handlers"
	"github.com/spec-kit/sector-mail-desk/internal/auth"
	"github.com/spec-kit/sector-mail-desk/internal/cache"
	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/events"
	"github.com/spec-kit/sector-mail-desk/internal/extract"
	"github.com/spec-kit/sector-mail-desk/internal/ingest"
	"github.com/spec-kit/sector-mail-desk/internal/labels"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/mail/mailtest"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
	"github.com/spec-kit/sector-mail-desk/internal/reply"
	"github.com/spec-kit/sector-mail-desk/internal/repository/repotest"
	"github.com/spec-kit/sector-mail-desk/internal/service"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type server struct {
	app     *fiber.App
	client  *mailtest.FakeClient
	tickets *repotest.MemoryTickets
	tokens  *auth.TokenManager
}

const schedulerKey = "scheduler-secret"

func newServer(t *testing.T, redisErr error) *server {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	client := mailtest.NewFakeClient()
	client.AddLabel("RMA")
	tickets := repotest.NewMemoryTickets()
	dispatcher := events.NewInMemoryDispatcher(logger)
	applier := labels.NewApplier(client, cache.NewMemoryLabelCache(), metrics, logger)

	settings := repotest.NewMemorySettings(domain.Settings{
		Sectors: map[domain.Sector]domain.SectorConfig{
			domain.SectorCHR: {Enabled: true, Labels: []string{"SAP-CHR"}},
		},
	})
	pipeline := ingest.NewPipeline(ingest.Dependencies{
		Client:     client,
		Body:       extract.NewBodyExtractor(logger),
		Guard:      ingest.NewGuard(tickets),
		Writer:     ingest.NewWriter(tickets, applier, metrics, logger),
		Sweeper:    ingest.NewSweeper(tickets, metrics, logger),
		Locker:     cache.NewMemoryLocker(),
		LockTTL:    time.Minute,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  tickets,
		HistoryRepo: repotest.NewMemoryHistory(),
		MailClient:  client,
		Composer:    reply.NewComposer("desk@example.com"),
		Labels:      applier,
		LabelNames:  config.ReplyConfig{RMALabel: "RMA"},
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	hash, err := auth.HashSecret(schedulerKey, bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenManager("secret", "desk", 5)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("sector-mail-desk", "test", map[string]handlers.Pinger{
			"postgres": pinger{},
			"redis":    pinger{err: redisErr},
		}),
		Ingestion: handlers.NewIngestionHandler(service.NewIngestionService(settings, pipeline,
			config.IngestionConfig{DefaultMaxMessages: 50, DefaultProcessedLabel: "Traité"}, logger)),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, hash),
		Metrics:        metrics,
	})
	return &server{app: app, client: client, tickets: tickets, tokens: tokens}
}

func (s *server) staffToken(t *testing.T, role domain.StaffRole, sectors ...domain.Sector) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken("alice", domain.SubjectTypeStaff, &role, sectors)
	require.NoError(t, err)
	return token
}

func (s *server) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func TestHealthReadyReportsDependencies(t *testing.T) {
	s := newServer(t, nil)
	resp, body := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	s = newServer(t, errors.New("connection refused"))
	resp, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "connection refused", details["redis"])
	assert.Equal(t, "ok", details["postgres"])
}

func TestIngestionRunWithSchedulerKey(t *testing.T) {
	s := newServer(t, nil)
	s.client.AddMessage(&mail.Message{
		ID:       "m1",
		ThreadID: "t1",
		Payload: &mail.Part{
			MimeType: "text/plain",
			Data:     []byte("Numéro de SAP : 9998887 Enseigne SuperMart Adresse 1 rue A 75001 Paris"),
		},
	}, "SAP-CHR")

	resp, body := s.do(t, http.MethodPost, "/ingestion/runs", "", map[string]string{auth.SchedulerKeyHeader: schedulerKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := body["data"].(map[string]any)
	sectors := report["sectors"].([]any)
	require.Len(t, sectors, 1)
	assert.EqualValues(t, 1, sectors[0].(map[string]any)["created"])

	resp, _ = s.do(t, http.MethodPost, "/ingestion/runs", "", bearer(s.staffToken(t, domain.StaffRoleAgent)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIngestionRunRequiresCredentials(t *testing.T) {
	s := newServer(t, nil)
	resp, body := s.do(t, http.MethodPost, "/ingestion/runs", "", map[string]string{fiber.HeaderXRequestID: "req-42"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(fiber.HeaderXRequestID))
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])
	assert.Equal(t, "req-42", errBody["request_id"])

	resp, _ = s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestUpdateStatusEndpoint(t *testing.T) {
	s := newServer(t, nil)
	ticket := s.tickets.Seed(domain.SectorTicket{
		Sector:       domain.SectorCHR,
		TicketNumber: "9998887",
		ThreadID:     "thread-1",
		FromAddress:  "client@example.com",
	})
	token := s.staffToken(t, domain.StaffRoleAgent, domain.SectorCHR)
	path := "/sectors/chr/tickets/" + ticket.ID + "/status"

	resp, body := s.do(t, http.MethodPatch, path, `{"status":"rma_request","comment":"retour"}`, bearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "sent-1", data["sent_message_id"])
	assert.Equal(t, "rma_request", data["ticket"].(map[string]any)["status"])
	assert.Equal(t, []string{"RMA"}, s.client.ThreadLabels("thread-1"))

	resp, _ = s.do(t, http.MethodPatch, path, `{"status":"bogus"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPatch, "/sectors/gms/tickets/"+ticket.ID+"/status", `{"status":"open"}`, bearer(token))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdateStatusSendFailureIsBadGateway(t *testing.T) {
	s := newServer(t, nil)
	s.client.SendErr = errors.New("provider down")
	ticket := s.tickets.Seed(domain.SectorTicket{Sector: domain.SectorCHR, ThreadID: "thread-1", FromAddress: "client@example.com"})

	resp, body := s.do(t, http.MethodPatch, "/sectors/CHR/tickets/"+ticket.ID+"/status", `{"status":"closed"}`,
		bearer(s.staffToken(t, domain.StaffRoleAgent)))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "UPSTREAM_FAILED", body["error"].(map[string]any)["code"])
}

func TestReplyAndHistoryEndpoints(t *testing.T) {
	s := newServer(t, nil)
	ticket := s.tickets.Seed(domain.SectorTicket{Sector: domain.SectorCHR, ThreadID: "thread-1", FromAddress: "client@example.com"})
	headers := bearer(s.staffToken(t, domain.StaffRoleSupervisor))

	resp, _ := s.do(t, http.MethodPost, "/sectors/chr/tickets/"+ticket.ID+"/replies", `{"body_html":""}`, headers)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/sectors/chr/tickets/"+ticket.ID+"/replies", `{"body_html":"<p>Suivi</p>"}`, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sent-1", body["data"].(map[string]any)["sent_message_id"])

	resp, body = s.do(t, http.MethodGet, "/sectors/chr/tickets/"+ticket.ID+"/history", "", headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.ChangeTypeReply), entries[0].(map[string]any)["change_type"])
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	s := newServer(t, nil)
	resp, body := s.do(t, http.MethodPatch, "/sectors/chr/tickets/missing/status", `{"status":"open"}`,
		bearer(s.staffToken(t, domain.StaffRoleAgent)))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestSweepRequiresSupervisor(t *testing.T) {
	s := newServer(t, nil)
	s.tickets.Seed(domain.SectorTicket{Sector: domain.SectorGMS, TicketNumber: domain.NotFound})

	resp, _ := s.do(t, http.MethodPost, "/ingestion/sectors/gms/sweep", "", bearer(s.staffToken(t, domain.StaffRoleAgent)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/ingestion/sectors/gms/sweep", "", bearer(s.staffToken(t, domain.StaffRoleSupervisor)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["invalidRemoved"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t, nil)
	s.do(t, http.MethodGet, "/health/live", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}
