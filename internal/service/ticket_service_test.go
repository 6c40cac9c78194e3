package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/cache"
	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/events"
	"github.com/spec-kit/sector-mail-desk/internal/labels"
	"github.com/spec-kit/sector-mail-desk/internal/mail/mailtest"
	"github.com/spec-kit/sector-mail-desk/internal/reply"
	"github.com/spec-kit/sector-mail-desk/internal/repository/repotest"
	apperrors "github.com/spec-kit/sector-mail-desk/pkg/util/errorutil"
)

var labelNames = config.ReplyConfig{
	ClosedLabel:     "Clôturé",
	RMALabel:        "RMA",
	MaterialLabel:   "Matériel envoyé",
	NoResponseLabel: "Sans réponse",
}

type ticketFixture struct {
	client  *mailtest.FakeClient
	tickets *repotest.MemoryTickets
	history *repotest.MemoryHistory
	events  []events.Event
	service *TicketService
	ticket  domain.SectorTicket
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &ticketFixture{
		client:  mailtest.NewFakeClient(),
		tickets: repotest.NewMemoryTickets(),
		history: repotest.NewMemoryHistory(),
	}
	for _, name := range []string{labelNames.ClosedLabel, labelNames.RMALabel, labelNames.MaterialLabel} {
		f.client.AddLabel(name)
	}
	dispatcher := events.NewInMemoryDispatcher(logger)
	for _, eventType := range []events.EventType{events.EventTicketStatusChanged, events.EventReplySent} {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			f.events = append(f.events, e)
			return nil
		})
	}
	f.ticket = f.tickets.Seed(domain.SectorTicket{
		Sector:          domain.SectorCHR,
		TicketNumber:    "9998887",
		ThreadID:        "thread-1",
		MessageIDHeader: "<orig@example.com>",
		FromAddress:     "Client <client@example.com>",
		ToAddresses:     []string{"desk@example.com"},
		SubjectLine:     "Demande 9998887",
	})
	f.service = NewTicketService(TicketDependencies{
		TicketRepo:  f.tickets,
		HistoryRepo: f.history,
		MailClient:  f.client,
		Composer:    reply.NewComposer("desk@example.com"),
		Labels:      labels.NewApplier(f.client, cache.NewMemoryLabelCache(), nil, logger),
		LabelNames:  labelNames,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	return f
}

func decodedSent(t *testing.T, f *ticketFixture) string {
	t.Helper()
	sent := f.client.Sent()
	require.Len(t, sent, 1)
	raw, err := base64.RawURLEncoding.DecodeString(sent[0].Raw)
	require.NoError(t, err)
	return string(raw)
}

func TestUpdateStatusSideEffects(t *testing.T) {
	cases := []struct {
		status domain.TicketStatus
		label   string
		mention bool
	}{
		{status: domain.TicketStatusRMARequest, label: labelNames.RMALabel, mention: true},
		{status: domain.TicketStatusMaterialSent, label: labelNames.MaterialLabel, mention: true},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newTicketFixture(t)
			result, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, StatusUpdate{
				Status:       tc.status,
				ResponseHTML: "<p>Bonjour</p>",
				Actor:        "alice",
			})
			require.NoError(t, err)
			assert.Equal(t, "sent-1", result.SentMessageID)
			assert.False(t, result.Archived)

			raw := decodedSent(t, f)
			assert.Equal(t, tc.mention, strings.Contains(raw, reply.RMAMention))
			assert.Equal(t, "thread-1", f.client.Sent()[0].ThreadID)
			assert.Equal(t, []string{tc.label}, f.client.ThreadLabels("thread-1"))

			stored, err := f.tickets.GetByID(context.Background(), domain.SectorCHR, f.ticket.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, stored.Status)
		})
	}
}

func TestUpdateStatusClosedArchivesTicket(t *testing.T) {
	f := newTicketFixture(t)

	result, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, StatusUpdate{
		Status:  domain.TicketStatusClosed,
		Comment: "résolu",
		Actor:   "alice",
	})
	require.NoError(t, err)
	assert.True(t, result.Archived)

	_, err = f.tickets.GetByID(context.Background(), domain.SectorCHR, f.ticket.ID)
	assert.Error(t, err)
	archived := f.tickets.Archived()
	require.Len(t, archived, 1)
	assert.Equal(t, domain.TicketStatusClosed, archived[0].Status)
	assert.Equal(t, []string{labelNames.ClosedLabel}, f.client.ThreadLabels("thread-1"))
	assert.Contains(t, decodedSent(t, f), "clôturée")

	history, err := f.service.History(context.Background(), domain.SectorCHR, f.ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeReply, history[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeStatus, history[1].ChangeType)
	assert.Equal(t, "résolu", history[1].NewValue["comment"])
	assert.Equal(t, domain.TicketStatusOpen, history[1].OldValue["status"])

	require.Len(t, f.events, 2)
	assert.Equal(t, events.EventReplySent, f.events[0].Type)
	assert.Equal(t, events.EventTicketStatusChanged, f.events[1].Type)
	payload := f.events[1].Payload.(events.TicketStatusChangedPayload)
	assert.True(t, payload.Archived)
	assert.NotEmpty(t, f.events[1].ID)
}

func TestRetriedCloseAfterArchiveFailureDoesNotResend(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.ArchiveErr = repotest.ErrInjected
	update := StatusUpdate{Status: domain.TicketStatusClosed, Actor: "alice"}

	_, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, update)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.ToDomainError(err).HTTPStatus)
	require.Len(t, f.client.Sent(), 1)
	stored, err := f.tickets.GetByID(context.Background(), domain.SectorCHR, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)

	f.tickets.ArchiveErr = nil
	result, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, update)
	require.NoError(t, err)
	assert.True(t, result.Archived)
	assert.Empty(t, result.SentMessageID)
	assert.Len(t, f.client.Sent(), 1)
	assert.Equal(t, []string{labelNames.ClosedLabel}, f.client.ThreadLabels("thread-1"))
	assert.Len(t, f.tickets.Archived(), 1)
}

func TestUpdateStatusSendFailureLeavesTicketUntouched(t *testing.T) {
	f := newTicketFixture(t)
	f.client.SendErr = repotest.ErrInjected

	_, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, StatusUpdate{
		Status: domain.TicketStatusRMARequest,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.ToDomainError(err).HTTPStatus)

	stored, err := f.tickets.GetByID(context.Background(), domain.SectorCHR, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Empty(t, f.client.ThreadLabels("thread-1"))
	assert.Empty(t, f.events)
}

func TestUpdateStatusMissingLabelStillPersists(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, StatusUpdate{
		Status: domain.TicketStatusPending,
	})
	require.NoError(t, err)

	assert.Empty(t, f.client.ThreadLabels("thread-1"))
	assert.Contains(t, decodedSent(t, f), "pas pu vous joindre")
	stored, err := f.tickets.GetByID(context.Background(), domain.SectorCHR, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, stored.Status)
}

func TestUpdateStatusOpenHasNoSideEffects(t *testing.T) {
	f := newTicketFixture(t)

	result, err := f.service.UpdateStatus(context.Background(), domain.SectorCHR, f.ticket.ID, StatusUpdate{
		Status: domain.TicketStatusOpen,
	})
	require.NoError(t, err)
	assert.Empty(t, result.SentMessageID)
	assert.Empty(t, f.client.Sent())
	require.Len(t, f.events, 1)
	assert.Equal(t, events.EventTicketStatusChanged, f.events[0].Type)
}

func TestUpdateStatusUnknownTicket(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.service.UpdateStatus(context.Background(), domain.SectorGMS, f.ticket.ID, StatusUpdate{
		Status: domain.TicketStatusClosed,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.ToDomainError(err).HTTPStatus)
	assert.Empty(t, f.client.Sent())
}

func TestReplyKeepsStatus(t *testing.T) {
	f := newTicketFixture(t)

	sentID, err := f.service.Reply(context.Background(), domain.SectorCHR, f.ticket.ID, "<p>Suivi</p>", "bob")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", sentID)
	raw := decodedSent(t, f)
	assert.Contains(t, raw, "<p>Suivi</p>")
	assert.Contains(t, raw, "In-Reply-To: <orig@example.com>")

	stored, err := f.tickets.GetByID(context.Background(), domain.SectorCHR, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Empty(t, f.client.ThreadLabels("thread-1"))
}

func TestReplyWithoutRecipientsIsValidationError(t *testing.T) {
	f := newTicketFixture(t)
	lonely := f.tickets.Seed(domain.SectorTicket{
		Sector:      domain.SectorCHR,
		ThreadID:    "thread-2",
		FromAddress: "desk@example.com",
	})

	_, err := f.service.Reply(context.Background(), domain.SectorCHR, lonely.ID, "<p>x</p>", "bob")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.ToDomainError(err).HTTPStatus)
}

func TestTemplateResponderFallsBackToGeneric(t *testing.T) {
	r := NewTemplateResponder()
	out, err := r.Generate(context.Background(), &domain.SectorTicket{TicketNumber: "42"}, reply.CaseType("unknown"))
	require.NoError(t, err)
	assert.Contains(t, out, "n°42")
}
