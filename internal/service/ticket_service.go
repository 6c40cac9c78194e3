package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/events"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
	"github.com/spec-kit/sector-mail-desk/internal/reply"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
	apperrors "github.com/spec-kit/sector-mail-desk/pkg/util/errorutil"
)

// LabelApplier attaches a resolution label to a thread.
type LabelApplier interface {
	Apply(ctx context.Context, threadID, name string) error
}

// TicketService runs the status handlers of sector tickets.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	client     mail.Client
	composer   *reply.Composer
	labels     LabelApplier
	responder  ResponseGenerator
	labelNames config.ReplyConfig
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	MailClient  mail.Client
	Composer    *reply.Composer
	Labels      LabelApplier
	Responder   ResponseGenerator
	LabelNames  config.ReplyConfig
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// StatusUpdate describes a requested status change.
type StatusUpdate struct {
	Status       domain.TicketStatus
	ResponseHTML string
	Comment      string
	Actor        string
}

// StatusResult reports the effects of a status change.
type StatusResult struct {
	Ticket        *domain.SectorTicket
	SentMessageID string
	Archived      bool
}

// NewTicketService wires the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	responder := deps.Responder
	if responder == nil {
		responder = NewTemplateResponder()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		client:     deps.MailClient,
		composer:   deps.Composer,
		labels:     deps.Labels,
		responder:  responder,
		labelNames: deps.LabelNames,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

type statusAction struct {
	caseType reply.CaseType
	label    func(config.ReplyConfig) string
}

var statusActions = map[domain.TicketStatus]statusAction{
	domain.TicketStatusPending: {
		caseType: reply.CaseNoResponse,
		label:    func(c config.ReplyConfig) string { return c.NoResponseLabel },
	},
	domain.TicketStatusRMARequest: {
		caseType: reply.CaseRMA,
		label:    func(c config.ReplyConfig) string { return c.RMALabel },
	},
	domain.TicketStatusMaterialSent: {
		caseType: reply.CaseMaterial,
		label:    func(c config.ReplyConfig) string { return c.MaterialLabel },
	},
	domain.TicketStatusClosed: {
		caseType: reply.CaseClosure,
		label:    func(c config.ReplyConfig) string { return c.ClosedLabel },
	},
}

// UpdateStatus applies a status change. For statuses with a reply the mail
// is sent first; a send failure leaves the ticket untouched. A status equal to
// the stored one sends nothing. Closing a ticket moves it to the archive.
func (s *TicketService) UpdateStatus(ctx context.Context, sector domain.Sector, ticketID string, update StatusUpdate) (*StatusResult, error) {
	ticket, err := s.getTicket(ctx, sector, ticketID)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	result := &StatusResult{Ticket: ticket}

	action, ok := statusActions[update.Status]
	switch {
	case ok && oldStatus == update.Status:
		// A retried update, typically a close whose archive step failed,
		// must not mail the customer twice.
		s.logger.Info("status already stored, skipping reply",
			zap.String("sector", string(sector)),
			zap.String("ticket_id", ticketID),
			zap.String("status", string(update.Status)))
	case ok:
		sentID, err := s.sendReply(ctx, ticket, update.ResponseHTML, action.caseType, update.Actor)
		if err != nil {
			return nil, err
		}
		result.SentMessageID = sentID
		s.applyLabel(ctx, ticket, action.label(s.labelNames))
	}

	if err := s.tickets.UpdateStatus(ctx, sector, ticketID, update.Status); err != nil {
		return nil, s.mapRepoError(err, ticketID)
	}
	ticket.Status = update.Status

	if err := s.recordHistory(ctx, ticket, update.Actor, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": update.Status, "comment": update.Comment}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if update.Status == domain.TicketStatusClosed {
		if err := s.tickets.Archive(ctx, ticket); err != nil {
			return nil, s.mapRepoError(err, ticketID)
		}
		result.Archived = true
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		Sector:   sector,
		TicketID: ticket.ID,
		Actor:    staffActor(update.Actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: update.Status,
			Comment:   update.Comment,
			Archived:  result.Archived,
		},
	})
	return result, nil
}

// Reply sends a generic threaded reply without changing status.
func (s *TicketService) Reply(ctx context.Context, sector domain.Sector, ticketID, bodyHTML, actor string) (string, error) {
	ticket, err := s.getTicket(ctx, sector, ticketID)
	if err != nil {
		return "", err
	}
	return s.sendReply(ctx, ticket, bodyHTML, reply.CaseGeneric, actor)
}

// List returns the open partition of a sector in insertion order.
func (s *TicketService) List(ctx context.Context, sector domain.Sector) ([]domain.SectorTicket, error) {
	tickets, err := s.tickets.ListBySector(ctx, sector)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// History lists audit entries of a ticket, archived ones included.
func (s *TicketService) History(ctx context.Context, sector domain.Sector, ticketID string) ([]domain.TicketHistory, error) {
	entries, err := s.history.ListByTicket(ctx, sector, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

func (s *TicketService) getTicket(ctx context.Context, sector domain.Sector, ticketID string) (*domain.SectorTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, sector, ticketID)
	if err != nil {
		return nil, s.mapRepoError(err, ticketID)
	}
	return ticket, nil
}

func (s *TicketService) sendReply(ctx context.Context, ticket *domain.SectorTicket, bodyHTML string, caseType reply.CaseType, actor string) (string, error) {
	if strings.TrimSpace(bodyHTML) == "" {
		generated, err := s.responder.Generate(ctx, ticket, caseType)
		if err != nil {
			return "", apperrors.NewInternalError(err)
		}
		bodyHTML = generated
	}

	composed, err := s.composer.Compose(ticket, bodyHTML, caseType)
	if errors.Is(err, reply.ErrNoRecipients) {
		return "", apperrors.NewValidationError("ticket has no reply recipients", map[string]any{"ticket_id": ticket.ID})
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	sentID, err := s.client.Send(ctx, composed.Raw, composed.ThreadID)
	if err != nil {
		s.metrics.ReplyFailed(string(caseType))
		s.logger.Error("reply send failed",
			zap.String("sector", string(ticket.Sector)),
			zap.String("ticket_id", ticket.ID),
			zap.String("thread_id", ticket.ThreadID),
			zap.String("case", string(caseType)),
			zap.Error(err))
		return "", apperrors.NewUpstreamError("reply could not be sent", err)
	}
	s.metrics.ReplySent(string(caseType))

	if err := s.recordHistory(ctx, ticket, actor, domain.ChangeTypeReply, nil, map[string]any{
		"case":            caseType,
		"sent_message_id": sentID,
		"to":              composed.To,
	}); err != nil {
		s.logger.Warn("reply history not recorded", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventReplySent,
		Sector:   ticket.Sector,
		TicketID: ticket.ID,
		Actor:    staffActor(actor),
		Payload: events.ReplySentPayload{
			SentMessageID: sentID,
			ThreadID:      ticket.ThreadID,
			CaseType:      string(caseType),
		},
	})
	return sentID, nil
}

func (s *TicketService) applyLabel(ctx context.Context, ticket *domain.SectorTicket, name string) {
	if s.labels == nil || strings.TrimSpace(name) == "" {
		return
	}
	if err := s.labels.Apply(ctx, ticket.ThreadID, name); err != nil {
		s.logger.Warn("resolution label not applied",
			zap.String("ticket_id", ticket.ID),
			zap.String("thread_id", ticket.ThreadID),
			zap.String("label", name),
			zap.Error(err))
	}
}

func (s *TicketService) recordHistory(ctx context.Context, ticket *domain.SectorTicket, actor string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	return s.history.Create(ctx, &domain.TicketHistory{
		TicketID:   ticket.ID,
		Sector:     ticket.Sector,
		ChangedBy:  actor,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	})
}

func (s *TicketService) mapRepoError(err error, ticketID string) error {
	if errors.Is(err, repository.ErrTicketNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.NewInternalError(err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func staffActor(id string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeStaff, ID: id}
}
