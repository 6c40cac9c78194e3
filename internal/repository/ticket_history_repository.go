package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// ErrHistoryIncomplete rejects audit rows without a ticket, sector or change type.
var ErrHistoryIncomplete = errors.New("history entry needs ticket, sector and change type")

// TicketHistoryRepository is the audit trail of status changes and replies.
// Rows outlive archiving, so a closed ticket keeps its history.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, sector domain.Sector, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if !validID(history.TicketID) || !history.Sector.Valid() || history.ChangeType == "" {
		return ErrHistoryIncomplete
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, sector, changed_by, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.Sector,
		history.ChangedBy,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

// ListByTicket returns the entries of one ticket in the given sector, oldest
// first. A malformed id yields no entries.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, sector domain.Sector, ticketID string) ([]domain.TicketHistory, error) {
	if !validID(ticketID) {
		return nil, nil
	}
	const query = `
        SELECT id, ticket_id, sector, changed_by, change_type, old_value, new_value, created_at
        FROM ticket_history
        WHERE sector=$1 AND ticket_id=$2
        ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, sector, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistory)
}

func scanHistory(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var history domain.TicketHistory
	err := row.Scan(
		&history.ID,
		&history.TicketID,
		&history.Sector,
		&history.ChangedBy,
		&history.ChangeType,
		&history.OldValue,
		&history.NewValue,
		&history.CreatedAt,
	)
	return history, err
}
