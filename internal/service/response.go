package service

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/reply"
)

// ResponseGenerator produces reply HTML for a ticket transition when the
// caller supplies none.
type ResponseGenerator interface {
	Generate(ctx context.Context, ticket *domain.SectorTicket, caseType reply.CaseType) (string, error)
}

var cannedResponses = map[reply.CaseType]string{
	reply.CaseClosure: `<p>Bonjour,</p><p>Votre demande n°{{.TicketNumber}} est désormais clôturée.` +
		` N'hésitez pas à nous recontacter si le problème persiste.</p><p>Cordialement,</p>`,
	reply.CaseRMA: `<p>Bonjour,</p><p>Un retour matériel a été ouvert pour la demande n°{{.TicketNumber}}.` +
		` Vous recevrez prochainement les instructions d'expédition.</p><p>Cordialement,</p>`,
	reply.CaseMaterial: `<p>Bonjour,</p><p>Le matériel de remplacement pour la demande n°{{.TicketNumber}}` +
		` vient d'être expédié.</p><p>Cordialement,</p>`,
	reply.CaseNoResponse: `<p>Bonjour,</p><p>Nous n'avons pas pu vous joindre au sujet de la demande` +
		` n°{{.TicketNumber}}. Merci de nous rappeler afin de convenir d'une intervention.</p><p>Cordialement,</p>`,
	reply.CaseGeneric: `<p>Bonjour,</p><p>Nous revenons vers vous concernant la demande n°{{.TicketNumber}}.</p><p>Cordialement,</p>`,
}

// TemplateResponder renders a canned French message per case type.
type TemplateResponder struct {
	templates map[reply.CaseType]*template.Template
}

// NewTemplateResponder parses the canned messages.
func NewTemplateResponder() *TemplateResponder {
	templates := make(map[reply.CaseType]*template.Template, len(cannedResponses))
	for caseType, body := range cannedResponses {
		templates[caseType] = template.Must(template.New(string(caseType)).Parse(body))
	}
	return &TemplateResponder{templates: templates}
}

func (r *TemplateResponder) Generate(_ context.Context, ticket *domain.SectorTicket, caseType reply.CaseType) (string, error) {
	tmpl, ok := r.templates[caseType]
	if !ok {
		tmpl = r.templates[reply.CaseGeneric]
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, ticket); err != nil {
		return "", fmt.Errorf("render %s response: %w", caseType, err)
	}
	return b.String(), nil
}
