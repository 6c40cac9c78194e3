package ingest

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/extract"
	mailbox "github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
)

// ProcessedMarker tags a source message once its ticket is stored.
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, messageID, labelName string) error
}

// Writer persists new tickets and marks their source message processed.
type Writer struct {
	tickets repository.TicketRepository
	marker  ProcessedMarker
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewWriter builds a writer.
func NewWriter(tickets repository.TicketRepository, marker ProcessedMarker, metrics *observability.Metrics, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{tickets: tickets, marker: marker, metrics: metrics, logger: logger}
}

// Write stores an open ticket for msg. A labelling failure after the insert
// is logged; the ticket is still returned.
func (w *Writer) Write(ctx context.Context, sector domain.Sector, msg *mailbox.Message, fields extract.TicketFields, ticketNumber, processedLabel string) (*domain.SectorTicket, error) {
	ticket := NewTicket(sector, msg, fields, ticketNumber)
	if err := w.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("persist ticket %s: %w", ticketNumber, err)
	}
	w.metrics.TicketCreated(string(sector))

	if err := w.marker.MarkProcessed(ctx, msg.ID, processedLabel); err != nil {
		w.logger.Warn("unable to mark message processed",
			zap.String("sector", string(sector)),
			zap.String("message_id", msg.ID),
			zap.String("label", processedLabel),
			zap.Error(err))
	}
	return ticket, nil
}

// NewTicket assembles an open ticket from extracted fields and message
// provenance. Missing headers become empty values.
func NewTicket(sector domain.Sector, msg *mailbox.Message, fields extract.TicketFields, ticketNumber string) *domain.SectorTicket {
	return &domain.SectorTicket{
		Sector:           sector,
		TicketNumber:     ticketNumber,
		CompanyName:      fields.CompanyName,
		ClientCode:       fields.ClientCode,
		Address:          fields.Address,
		PhoneNumbers:     nonNil(fields.PhoneNumbers),
		RequestText:      fields.RequestText,
		ReceivedDate:     fields.ReceivedDate,
		SourceMessageID:  msg.ID,
		ThreadID:         msg.ThreadID,
		MessageIDHeader:  strings.TrimSpace(msg.Header("Message-ID")),
		ReferencesHeader: strings.TrimSpace(msg.Header("References")),
		FromAddress:      strings.TrimSpace(msg.Header("From")),
		ToAddresses:      ParseAddresses(msg.Header("To")),
		CcAddresses:      ParseAddresses(msg.Header("Cc")),
		SubjectLine:      strings.TrimSpace(msg.Header("Subject")),
		MessageDate:      strings.TrimSpace(msg.Header("Date")),
		Status:           domain.TicketStatusOpen,
	}
}

// ParseAddresses splits an address header into entries, falling back to a
// comma split when the header is not RFC 5322 clean.
func ParseAddresses(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return []string{}
	}
	if list, err := mail.ParseAddressList(header); err == nil {
		return lo.Map(list, func(a *mail.Address, _ int) string { return a.String() })
	}
	return lo.Compact(lo.Map(strings.Split(header, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
