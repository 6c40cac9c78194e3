package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/extract"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/repository/repotest"
)

type recordingMarker struct {
	marked []string
	err    error
}

func (r *recordingMarker) MarkProcessed(_ context.Context, messageID, _ string) error {
	r.marked = append(r.marked, messageID)
	return r.err
}

func TestWriterDefaultsMissingProvenance(t *testing.T) {
	msg := &mail.Message{ID: "m1", Payload: &mail.Part{MimeType: "text/plain"}}
	fields := extract.ExtractFields("")

	ticket := NewTicket(domain.SectorGMS, msg, fields, "1234567")
	assert.Equal(t, "", ticket.ThreadID)
	assert.Equal(t, "", ticket.MessageIDHeader)
	assert.Equal(t, []string{}, ticket.ToAddresses)
	assert.Equal(t, []string{}, ticket.PhoneNumbers)
	assert.Equal(t, domain.NotFound, ticket.CompanyName)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
}

func TestWriterMarksAfterSuccessfulInsert(t *testing.T) {
	tickets := repotest.NewMemoryTickets()
	marker := &recordingMarker{err: repotest.ErrInjected}
	writer := NewWriter(tickets, marker, nil, nil)

	ticket, err := writer.Write(context.Background(), domain.SectorCHR, &mail.Message{ID: "m1"}, extract.ExtractFields(""), "1234567", "Traité")
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, []string{"m1"}, marker.marked)
}

func TestWriterDoesNotMarkWhenInsertFails(t *testing.T) {
	tickets := repotest.NewMemoryTickets()
	tickets.CreateErr = repotest.ErrInjected
	marker := &recordingMarker{}
	writer := NewWriter(tickets, marker, nil, nil)

	_, err := writer.Write(context.Background(), domain.SectorCHR, &mail.Message{ID: "m1"}, extract.ExtractFields(""), "1234567", "Traité")
	assert.ErrorIs(t, err, repotest.ErrInjected)
	assert.Empty(t, marker.marked)
}

func TestParseAddressesFallsBackToCommaSplit(t *testing.T) {
	assert.Equal(t, []string{`"Jean" <jean@example.com>`, "<b@example.com>"}, ParseAddresses("Jean <jean@example.com>, b@example.com"))
	assert.Equal(t, []string{"not an address", "other"}, ParseAddresses("not an address, other"))
	assert.Equal(t, []string{}, ParseAddresses("  "))
}
