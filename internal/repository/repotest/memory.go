// Package repotest provides in-memory repository implementations for tests.
package repotest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
)

// MemoryTickets keeps tickets per sector in insertion order.
type MemoryTickets struct {
	mu       sync.Mutex
	bySector map[domain.Sector][]domain.SectorTicket
	archived []domain.ArchivedTicket

	// CreateErr, when set, is returned by Create.
	CreateErr error
	// ExistsErr, when set, is returned by ExistsByNumber.
	ExistsErr error
	// ListErr, when set, is returned by ListBySector.
	ListErr error
	// ArchiveErr, when set, is returned by Archive.
	ArchiveErr error
}

var _ repository.TicketRepository = (*MemoryTickets)(nil)

// NewMemoryTickets builds an empty store.
func NewMemoryTickets() *MemoryTickets {
	return &MemoryTickets{bySector: make(map[domain.Sector][]domain.SectorTicket)}
}

func (m *MemoryTickets) Create(_ context.Context, ticket *domain.SectorTicket) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	m.bySector[ticket.Sector] = append(m.bySector[ticket.Sector], *ticket)
	return nil
}

// Seed inserts a ticket bypassing every guard.
func (m *MemoryTickets) Seed(ticket domain.SectorTicket) domain.SectorTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	m.bySector[ticket.Sector] = append(m.bySector[ticket.Sector], ticket)
	return ticket
}

func (m *MemoryTickets) GetByID(_ context.Context, sector domain.Sector, id string) (*domain.SectorTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.bySector[sector] {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (m *MemoryTickets) ExistsByNumber(_ context.Context, sector domain.Sector, ticketNumber string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.bySector[sector] {
		if t.TicketNumber == ticketNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryTickets) ListBySector(_ context.Context, sector domain.Sector) ([]domain.SectorTicket, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SectorTicket(nil), m.bySector[sector]...), nil
}

func (m *MemoryTickets) UpdateStatus(_ context.Context, sector domain.Sector, id string, status domain.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.bySector[sector] {
		if t.ID == id {
			m.bySector[sector][i].Status = status
			m.bySector[sector][i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return repository.ErrTicketNotFound
}

func (m *MemoryTickets) DeleteByID(_ context.Context, sector domain.Sector, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeLocked(sector, func(t domain.SectorTicket) bool { return t.ID == id }) {
		return repository.ErrTicketNotFound
	}
	return nil
}

func (m *MemoryTickets) DeleteByNumber(_ context.Context, sector domain.Sector, ticketNumber string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for m.removeLocked(sector, func(t domain.SectorTicket) bool { return t.TicketNumber == ticketNumber }) {
		removed++
	}
	return removed, nil
}

func (m *MemoryTickets) Archive(_ context.Context, ticket *domain.SectorTicket) error {
	if m.ArchiveErr != nil {
		return m.ArchiveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored *domain.SectorTicket
	for _, t := range m.bySector[ticket.Sector] {
		if t.ID == ticket.ID {
			copied := t
			stored = &copied
			break
		}
	}
	if stored == nil {
		return repository.ErrTicketNotFound
	}
	m.archived = append(m.archived, domain.ArchivedTicket{SectorTicket: *stored, ArchivedAt: time.Now().UTC()})
	m.removeLocked(ticket.Sector, func(t domain.SectorTicket) bool { return t.ID == ticket.ID })
	return nil
}

// Archived returns the archive contents.
func (m *MemoryTickets) Archived() []domain.ArchivedTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ArchivedTicket(nil), m.archived...)
}

func (m *MemoryTickets) removeLocked(sector domain.Sector, match func(domain.SectorTicket) bool) bool {
	list := m.bySector[sector]
	for i, t := range list {
		if match(t) {
			m.bySector[sector] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// MemorySettings holds one settings document.
type MemorySettings struct {
	mu       sync.Mutex
	settings domain.Settings
	GetErr   error
}

var _ repository.SettingsRepository = (*MemorySettings)(nil)

// NewMemorySettings seeds the store with s.
func NewMemorySettings(s domain.Settings) *MemorySettings {
	return &MemorySettings{settings: s}
}

func (m *MemorySettings) Get(context.Context) (domain.Settings, error) {
	if m.GetErr != nil {
		return domain.Settings{}, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *MemorySettings) Save(_ context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

// MemoryHistory records history entries.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

var _ repository.TicketHistoryRepository = (*MemoryHistory)(nil)

// NewMemoryHistory builds an empty history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	if h.TicketID == "" || !h.Sector.Valid() || h.ChangeType == "" {
		return repository.ErrHistoryIncomplete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *h)
	return nil
}

func (m *MemoryHistory) ListByTicket(_ context.Context, sector domain.Sector, ticketID string) ([]domain.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range m.entries {
		if h.Sector == sector && h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("injected failure")
