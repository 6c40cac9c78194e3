package events

import (
	"time"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIngested      EventType = "ticket_ingested"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventReplySent           EventType = "reply_sent"
	EventSectorSwept         EventType = "sector_swept"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Sector    domain.Sector `json:"sector"`
	TicketID  string        `json:"ticket_id,omitempty"`
	Actor     Actor         `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   interface{}   `json:"payload"`
}

// TicketIngestedPayload payload.
type TicketIngestedPayload struct {
	TicketNumber    string   `json:"ticket_number"`
	CompanyName     string   `json:"company_name"`
	SourceMessageID string   `json:"source_message_id"`
	Responsibles    []string `json:"responsibles,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
	Archived  bool                `json:"archived,omitempty"`
}

// ReplySentPayload payload.
type ReplySentPayload struct {
	SentMessageID string `json:"sent_message_id"`
	ThreadID      string `json:"thread_id"`
	CaseType      string `json:"case_type"`
}

// SectorSweptPayload payload.
type SectorSweptPayload struct {
	InvalidRemoved    int `json:"invalid_removed"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}
