package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/repository/repotest"
)

func TestSweepRemovesSentinelRecords(t *testing.T) {
	tickets := repotest.NewMemoryTickets()
	tickets.Seed(domain.SectorTicket{Sector: domain.SectorCHR, TicketNumber: domain.NotFound})
	kept := tickets.Seed(domain.SectorTicket{Sector: domain.SectorCHR, TicketNumber: "7654321"})

	result, err := NewSweeper(tickets, nil, nil).Sweep(context.Background(), domain.SectorCHR)
	require.NoError(t, err)
	assert.Equal(t, 1, result.InvalidRemoved)

	remaining, _ := tickets.ListBySector(context.Background(), domain.SectorCHR)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}

func TestSweepKeepsFirstInsertedDuplicate(t *testing.T) {
	tickets := repotest.NewMemoryTickets()
	a := tickets.Seed(domain.SectorTicket{Sector: domain.SectorRHF, TicketNumber: "1234567", CompanyName: "A"})
	tickets.Seed(domain.SectorTicket{Sector: domain.SectorRHF, TicketNumber: "1234567", CompanyName: "B"})

	result, err := NewSweeper(tickets, nil, nil).Sweep(context.Background(), domain.SectorRHF)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DuplicatesRemoved)

	remaining, _ := tickets.ListBySector(context.Background(), domain.SectorRHF)
	require.Len(t, remaining, 1)
	assert.Equal(t, a.ID, remaining[0].ID)
	assert.Equal(t, "A", remaining[0].CompanyName)
}

func TestSweepDoesNotCrossSectors(t *testing.T) {
	tickets := repotest.NewMemoryTickets()
	tickets.Seed(domain.SectorTicket{Sector: domain.SectorCHR, TicketNumber: "1234567"})
	tickets.Seed(domain.SectorTicket{Sector: domain.SectorIND, TicketNumber: "1234567"})

	result, err := NewSweeper(tickets, nil, nil).Sweep(context.Background(), domain.SectorCHR)
	require.NoError(t, err)
	assert.Zero(t, result.DuplicatesRemoved)

	other, _ := tickets.ListBySector(context.Background(), domain.SectorIND)
	assert.Len(t, other, 1)
}
