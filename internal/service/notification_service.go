package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// EventTypes lists the events that produce notifications.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTicketIngested,
		events.EventTicketStatusChanged,
		events.EventReplySent,
		events.EventSectorSwept,
	}
}

// RegisterHandlers subscribes Handle synchronously. The server uses the
// queued worker instead.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range n.EventTypes() {
		n.dispatcher.Subscribe(eventType, n.Handle)
	}
}

// Handle routes one event to its notification.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketIngested:
		return n.handleTicketIngested(ctx, event)
	case events.EventTicketStatusChanged:
		return n.handleTicketStatusChanged(ctx, event)
	case events.EventReplySent:
		return n.handleReplySent(ctx, event)
	case events.EventSectorSwept:
		return n.handleSectorSwept(ctx, event)
	default:
		return nil
	}
}

func (n *NotificationService) handleTicketIngested(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketIngestedPayload)
	n.logger.Info("TicketIngested",
		zap.String("sector", string(event.Sector)),
		zap.String("ticket_id", event.TicketID),
		zap.String("ticket_number", payload.TicketNumber))
	for _, responsible := range payload.Responsibles {
		n.sendEmailNotificationStub(ctx, event, responsible)
	}
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleReplySent(_ context.Context, event events.Event) error {
	n.logger.Info("ReplySent", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleSectorSwept(_ context.Context, event events.Event) error {
	n.logger.Info("SectorSwept", zap.String("sector", string(event.Sector)), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || strings.TrimSpace(to) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
