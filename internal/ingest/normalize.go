// Package ingest turns labelled inbound mail into sector tickets.
package ingest

import (
	"context"
	"strings"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
)

// NormalizeTicketNumber keeps only the digits of raw. The sentinel and
// inputs without digits normalize to "", which rejects the message.
func NormalizeTicketNumber(raw string) string {
	if strings.TrimSpace(raw) == domain.NotFound {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// Guard checks whether a canonical ticket number already exists in a sector.
type Guard struct {
	tickets repository.TicketRepository
}

// NewGuard builds a guard over the ticket store.
func NewGuard(tickets repository.TicketRepository) *Guard {
	return &Guard{tickets: tickets}
}

// Exists reports whether ticketNumber is stored in sector. Empty numbers are
// never queried.
func (g *Guard) Exists(ctx context.Context, sector domain.Sector, ticketNumber string) (bool, error) {
	if ticketNumber == "" {
		return false, nil
	}
	return g.tickets.ExistsByNumber(ctx, sector, ticketNumber)
}
