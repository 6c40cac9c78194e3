package domain

import (
	"fmt"
	"time"
)

// NotFound is stored when a field extractor finds no match.
const NotFound = "not found"

// TicketStatus enumerates lifecycle states for sector tickets.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusPending      TicketStatus = "pending"
	TicketStatusClosed       TicketStatus = "closed"
	TicketStatusRMARequest   TicketStatus = "rma_request"
	TicketStatusMaterialSent TicketStatus = "material_sent"
	TicketStatusArchived     TicketStatus = "archived"
)

// ParseTicketStatus validates a status value.
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch st := TicketStatus(s); st {
	case TicketStatusOpen, TicketStatusPending, TicketStatusClosed,
		TicketStatusRMARequest, TicketStatusMaterialSent, TicketStatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown ticket status %q", s)
}

// SectorTicket is a support request ingested from one inbound email.
type SectorTicket struct {
	ID           string
	Sector       Sector
	TicketNumber string

	CompanyName  string
	ClientCode   string
	Address      string
	PhoneNumbers []string
	RequestText  string
	ReceivedDate string

	SourceMessageID  string
	ThreadID         string
	MessageIDHeader  string
	ReferencesHeader string
	FromAddress      string
	ToAddresses      []string
	CcAddresses      []string
	SubjectLine      string
	MessageDate      string

	Status    TicketStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArchivedTicket is a closed ticket moved out of its sector partition.
type ArchivedTicket struct {
	SectorTicket
	ArchivedAt time.Time
}
