package dto

import (
	"time"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status       string `json:"status"`
	ResponseHTML string `json:"response_html"`
	Comment      string `json:"comment"`
}

// ReplyRequest payload.
type ReplyRequest struct {
	BodyHTML string `json:"body_html"`
}

// TicketResponse represents a sector ticket.
type TicketResponse struct {
	ID           string              `json:"id"`
	Sector       domain.Sector       `json:"sector"`
	TicketNumber string              `json:"ticket_number"`
	CompanyName  string              `json:"company_name"`
	ClientCode   string              `json:"client_code"`
	Address      string              `json:"address"`
	PhoneNumbers []string            `json:"phone_numbers"`
	RequestText  string              `json:"request_text"`
	ReceivedDate string              `json:"received_date"`
	ThreadID     string              `json:"thread_id"`
	FromAddress  string              `json:"from_address"`
	SubjectLine  string              `json:"subject"`
	Status       domain.TicketStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// StatusUpdateResponse reports the effects of a status change.
type StatusUpdateResponse struct {
	Ticket        TicketResponse `json:"ticket"`
	SentMessageID string         `json:"sent_message_id,omitempty"`
	Archived      bool           `json:"archived"`
}

// ReplyResponse carries the provider id of the sent reply.
type ReplyResponse struct {
	SentMessageID string `json:"sent_message_id"`
}

// HistoryEntryResponse is one audit row.
type HistoryEntryResponse struct {
	ID         string                  `json:"id"`
	ChangedBy  string                  `json:"changed_by"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value,omitempty"`
	NewValue   map[string]any          `json:"new_value,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// TicketFromDomain maps a ticket to its response shape.
func TicketFromDomain(t *domain.SectorTicket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		Sector:       t.Sector,
		TicketNumber: t.TicketNumber,
		CompanyName:  t.CompanyName,
		ClientCode:   t.ClientCode,
		Address:      t.Address,
		PhoneNumbers: t.PhoneNumbers,
		RequestText:  t.RequestText,
		ReceivedDate: t.ReceivedDate,
		ThreadID:     t.ThreadID,
		FromAddress:  t.FromAddress,
		SubjectLine:  t.SubjectLine,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// HistoryFromDomain maps audit rows.
func HistoryFromDomain(entries []domain.TicketHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryEntryResponse{
			ID:         h.ID,
			ChangedBy:  h.ChangedBy,
			ChangeType: h.ChangeType,
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}
