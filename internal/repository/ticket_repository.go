package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// ErrTicketNotFound is returned when no ticket matches in the sector.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository encapsulates sector ticket persistence. Every call is
// scoped to one sector; there is no cross-sector query.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.SectorTicket) error
	GetByID(ctx context.Context, sector domain.Sector, id string) (*domain.SectorTicket, error)
	ExistsByNumber(ctx context.Context, sector domain.Sector, ticketNumber string) (bool, error)
	ListBySector(ctx context.Context, sector domain.Sector) ([]domain.SectorTicket, error)
	UpdateStatus(ctx context.Context, sector domain.Sector, id string, status domain.TicketStatus) error
	DeleteByID(ctx context.Context, sector domain.Sector, id string) error
	DeleteByNumber(ctx context.Context, sector domain.Sector, ticketNumber string) (int64, error)
	Archive(ctx context.Context, ticket *domain.SectorTicket) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, sector, ticket_number, company_name, client_code, address, phone_numbers,
        request_text, received_date, source_message_id, thread_id, message_id_header,
        references_header, from_address, to_addresses, cc_addresses, subject_line,
        message_date, status, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.SectorTicket) error {
	const query = `
        INSERT INTO sector_tickets (sector, ticket_number, company_name, client_code, address, phone_numbers,
            request_text, received_date, source_message_id, thread_id, message_id_header, references_header,
            from_address, to_addresses, cc_addresses, subject_line, message_date, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Sector,
		ticket.TicketNumber,
		ticket.CompanyName,
		ticket.ClientCode,
		ticket.Address,
		nonNil(ticket.PhoneNumbers),
		ticket.RequestText,
		ticket.ReceivedDate,
		ticket.SourceMessageID,
		ticket.ThreadID,
		ticket.MessageIDHeader,
		ticket.ReferencesHeader,
		ticket.FromAddress,
		nonNil(ticket.ToAddresses),
		nonNil(ticket.CcAddresses),
		ticket.SubjectLine,
		ticket.MessageDate,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, sector domain.Sector, id string) (*domain.SectorTicket, error) {
	if !validID(id) {
		return nil, ErrTicketNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM sector_tickets WHERE sector=$1 AND id=$2`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, sector, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return ticket, err
}

func (r *ticketRepository) ExistsByNumber(ctx context.Context, sector domain.Sector, ticketNumber string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sector_tickets WHERE sector=$1 AND ticket_number=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, sector, ticketNumber).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ticketRepository) ListBySector(ctx context.Context, sector domain.Sector) ([]domain.SectorTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM sector_tickets WHERE sector=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, sector)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SectorTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, sector domain.Sector, id string, status domain.TicketStatus) error {
	if !validID(id) {
		return ErrTicketNotFound
	}
	const query = `UPDATE sector_tickets SET status=$1, updated_at=NOW() WHERE sector=$2 AND id=$3`
	cmd, err := r.pool.Exec(ctx, query, status, sector, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) DeleteByID(ctx context.Context, sector domain.Sector, id string) error {
	if !validID(id) {
		return ErrTicketNotFound
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sector_tickets WHERE sector=$1 AND id=$2`, sector, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) DeleteByNumber(ctx context.Context, sector domain.Sector, ticketNumber string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sector_tickets WHERE sector=$1 AND ticket_number=$2`, sector, ticketNumber)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// Archive copies the ticket into archived_tickets and removes the original
// in one transaction.
func (r *ticketRepository) Archive(ctx context.Context, ticket *domain.SectorTicket) error {
	const insert = `
        INSERT INTO archived_tickets (` + ticketColumns + `)
        SELECT ` + ticketColumns + ` FROM sector_tickets WHERE sector=$1 AND id=$2`
	if !validID(ticket.ID) {
		return ErrTicketNotFound
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, insert, ticket.Sector, ticket.ID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrTicketNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM sector_tickets WHERE sector=$1 AND id=$2`, ticket.Sector, ticket.ID)
		return err
	})
}

func scanTicket(row pgx.Row) (*domain.SectorTicket, error) {
	var ticket domain.SectorTicket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Sector,
		&ticket.TicketNumber,
		&ticket.CompanyName,
		&ticket.ClientCode,
		&ticket.Address,
		&ticket.PhoneNumbers,
		&ticket.RequestText,
		&ticket.ReceivedDate,
		&ticket.SourceMessageID,
		&ticket.ThreadID,
		&ticket.MessageIDHeader,
		&ticket.ReferencesHeader,
		&ticket.FromAddress,
		&ticket.ToAddresses,
		&ticket.CcAddresses,
		&ticket.SubjectLine,
		&ticket.MessageDate,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// validID keeps malformed ids away from the uuid column, where they would
// surface as cast errors instead of misses.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
