package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
)

// SweepResult counts records removed from one sector.
type SweepResult struct {
	InvalidRemoved    int `json:"invalidRemoved"`
	DuplicatesRemoved int `json:"duplicatesRemoved"`
}

// Sweeper removes sentinel-numbered records and later duplicates.
type Sweeper struct {
	tickets repository.TicketRepository
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSweeper builds a sweeper.
func NewSweeper(tickets repository.TicketRepository, metrics *observability.Metrics, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{tickets: tickets, metrics: metrics, logger: logger}
}

// Sweep cleans one sector. Within a ticket number the earliest inserted
// record survives.
func (s *Sweeper) Sweep(ctx context.Context, sector domain.Sector) (SweepResult, error) {
	var result SweepResult

	invalid, err := s.tickets.DeleteByNumber(ctx, sector, domain.NotFound)
	if err != nil {
		return result, fmt.Errorf("remove invalid tickets: %w", err)
	}
	result.InvalidRemoved = int(invalid)

	tickets, err := s.tickets.ListBySector(ctx, sector)
	if err != nil {
		return result, fmt.Errorf("list tickets: %w", err)
	}
	seen := make(map[string]string, len(tickets))
	for _, ticket := range tickets {
		first, ok := seen[ticket.TicketNumber]
		if !ok {
			seen[ticket.TicketNumber] = ticket.ID
			continue
		}
		if err := s.tickets.DeleteByID(ctx, sector, ticket.ID); err != nil {
			return result, fmt.Errorf("remove duplicate %s: %w", ticket.ID, err)
		}
		result.DuplicatesRemoved++
		s.logger.Info("duplicate ticket removed",
			zap.String("sector", string(sector)),
			zap.String("ticket_number", ticket.TicketNumber),
			zap.String("ticket_id", ticket.ID),
			zap.String("kept_ticket_id", first))
	}

	s.metrics.SweepDeleted(string(sector), "invalid", result.InvalidRemoved)
	s.metrics.SweepDeleted(string(sector), "duplicate", result.DuplicatesRemoved)
	return result, nil
}
