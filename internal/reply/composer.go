// Package reply builds threaded outbound replies to ingested tickets.
package reply

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"

	"github.com/samber/lo"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// CaseType selects the resolution a reply communicates.
type CaseType string

const (
	CaseClosure    CaseType = "closure"
	CaseRMA        CaseType = "rma"
	CaseMaterial   CaseType = "material"
	CaseNoResponse CaseType = "no_response"
	CaseGeneric    CaseType = "generic"
)

// RMAMention prefixes the body of rma and material replies.
const RMAMention = "<p><strong>Merci de rappeler le numéro de dossier RMA sur tout colis ou correspondance.</strong></p>"

// ErrNoRecipients is returned when the ticket yields no address to reply to.
var ErrNoRecipients = errors.New("reply has no recipients")

// Composed is an encoded reply ready for Client.Send.
type Composed struct {
	Raw      string
	ThreadID string
	To       []string
	Cc       []string
	Subject  string
}

// Composer renders RFC 2822 replies from a fixed sender address.
type Composer struct {
	sender string
}

// NewComposer builds a composer sending as sender.
func NewComposer(sender string) *Composer {
	return &Composer{sender: strings.TrimSpace(sender)}
}

// Compose builds the reply for ticket. The raw form is base64url without
// padding.
func (c *Composer) Compose(ticket *domain.SectorTicket, bodyHTML string, caseType CaseType) (*Composed, error) {
	if ticket == nil {
		return nil, errors.New("compose reply: nil ticket")
	}
	to := c.recipients(append([]string{ticket.FromAddress}, ticket.ToAddresses...))
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	cc := lo.Filter(c.recipients(ticket.CcAddresses), func(addr string, _ int) bool {
		return !lo.ContainsBy(to, func(existing string) bool { return sameAddress(existing, addr) })
	})
	subject := replySubject(ticket.SubjectLine)

	body := bodyHTML
	if caseType == CaseRMA || caseType == CaseMaterial {
		body = RMAMention + body
	}

	var b strings.Builder
	writeHeader(&b, "From", c.sender)
	writeHeader(&b, "To", strings.Join(to, ", "))
	if len(cc) > 0 {
		writeHeader(&b, "Cc", strings.Join(cc, ", "))
	}
	writeHeader(&b, "Subject", mime.QEncoding.Encode("UTF-8", subject))
	msgID := strings.TrimSpace(ticket.MessageIDHeader)
	if msgID != "" {
		writeHeader(&b, "In-Reply-To", msgID)
	}
	if refs := References(ticket.ReferencesHeader, msgID); refs != "" {
		writeHeader(&b, "References", refs)
	}
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", "text/html; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(body)

	return &Composed{
		Raw:      base64.RawURLEncoding.EncodeToString([]byte(b.String())),
		ThreadID: ticket.ThreadID,
		To:       to,
		Cc:       cc,
		Subject:  subject,
	}, nil
}

// References appends messageID to the prior references chain.
func References(prior, messageID string) string {
	prior = strings.TrimSpace(prior)
	messageID = strings.TrimSpace(messageID)
	switch {
	case messageID == "":
		return prior
	case prior == "":
		return messageID
	default:
		return prior + " " + messageID
	}
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if len(subject) >= 3 && strings.EqualFold(subject[:3], "re:") {
		return subject
	}
	return "Re: " + subject
}

// recipients parses and dedupes addresses, dropping the sender.
func (c *Composer) recipients(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, addr := range splitAddresses(entry) {
			if sameAddress(addr, c.sender) {
				continue
			}
			if lo.ContainsBy(out, func(existing string) bool { return sameAddress(existing, addr) }) {
				continue
			}
			out = append(out, addr)
		}
	}
	return out
}

func splitAddresses(entry string) []string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	if list, err := mail.ParseAddressList(entry); err == nil {
		return lo.Map(list, func(a *mail.Address, _ int) string { return a.String() })
	}
	return lo.Compact(lo.Map(strings.Split(entry, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
}

func sameAddress(a, b string) bool {
	return bareAddress(a) == bareAddress(b)
}

func bareAddress(s string) string {
	if parsed, err := mail.ParseAddress(s); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func writeHeader(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "%s: %s\r\n", name, value)
}
