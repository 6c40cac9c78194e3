package extract

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// TicketFields is the structured content pulled out of a message body. Every
// string defaults to domain.NotFound.
type TicketFields struct {
	CompanyName  string   `json:"companyName"`
	TicketNumber string   `json:"ticketNumber"`
	ClientCode   string   `json:"clientCode"`
	Address      string   `json:"address"`
	ReceivedDate string   `json:"receivedDate"`
	Phones       string   `json:"phones"`
	PhoneNumbers []string `json:"phoneNumbers"`
	RequestText  string   `json:"requestText"`
}

// Accent-tolerant spellings: plain, precomposed, quoted-printable escape and
// the latin-1 mojibake of the UTF-8 bytes.
const (
	eAcute = `(?:é|e|=C3=A9|Ã©)`
	uHat   = `(?:û|u|=C3=BB|Ã»)`
)

var (
	labelRaisonSociale = `raison\s+sociale`
	labelEnseigne      = `enseigne`
	labelGrandCompte   = `grand\s+compte`
	labelAdresse       = `adresse`
	labelClient        = `client`
	labelCode          = `code`
	labelTelephone     = `t` + eAcute + `l` + eAcute + `phone`
	labelEmail         = `e-?mail`
	labelHoraires      = `horaires`
	labelNumero        = `num` + eAcute + `ro`
	labelCommentaires  = `commentaires?`
)

// matcher is one alternative of a field rule; group selects the capture.
type matcher struct {
	name    string
	pattern *regexp.Regexp
	group   int
}

// fieldRule tries its matchers in order; the first non-empty cleaned
// capture wins.
type fieldRule struct {
	matchers []matcher
	clean    func(string) string
}

func (r fieldRule) apply(text string) string {
	for _, m := range r.matchers {
		sub := m.pattern.FindStringSubmatch(text)
		if sub == nil || len(sub) <= m.group {
			continue
		}
		value := sub[m.group]
		if r.clean != nil {
			value = r.clean(value)
		}
		if value != "" {
			return value
		}
	}
	return domain.NotFound
}

// labelled captures the value after label up to the first stop label, an
// optional closing asterisk, or the end of the text. An empty value stops at
// the first stop label so the next matcher gets its turn.
func labelled(name, label string, stops ...string) matcher {
	return matcher{
		name:    name,
		pattern: regexp.MustCompile(`(?i)\b` + label + `[\s:*]*(.*?)\s*\*?\s*(?:\b(?:` + strings.Join(stops, "|") + `)|$)`),
		group:   1,
	}
}

func pattern(name, expr string, group int) matcher {
	return matcher{name: name, pattern: regexp.MustCompile(`(?i)` + expr), group: group}
}

var companyStops = []string{labelEnseigne, labelGrandCompte, labelAdresse, labelClient, labelTelephone, labelEmail, labelHoraires}

var addressStops = []string{
	labelClient, labelCode, labelTelephone, labelEmail, labelHoraires, labelCommentaires,
	labelNumero, labelEnseigne, labelRaisonSociale, labelGrandCompte,
}

var (
	companyRule = fieldRule{
		matchers: []matcher{
			labelled("raison_sociale", labelRaisonSociale, companyStops...),
			labelled("enseigne", labelEnseigne, lo.Without(companyStops, labelEnseigne)...),
		},
		clean: cleanValue,
	}

	ticketNumberRule = fieldRule{
		matchers: []matcher{
			pattern("numero", labelNumero+`[^0-9]{0,30}?(\d{7,})`, 1),
			pattern("starred", `\*\s*(\d{7,})\s*\*`, 1),
		},
		clean: strings.TrimSpace,
	}

	clientCodeRule = fieldRule{
		matchers: []matcher{
			pattern("client", `(?:\b`+labelCode+`\s*)?\b`+labelClient+`\b[\s:*#°n]*(\d+)`, 1),
		},
		clean: strings.TrimSpace,
	}

	addressRule = fieldRule{
		matchers: []matcher{
			pattern("adresse", `\b`+labelAdresse+`[\s:*]*(\d+[^*]*?\s\d{5}\s+[^*]+?)\s*\*?\s*(?:\b(?:`+strings.Join(addressStops, "|")+`)|$)`, 1),
		},
		clean: cleanValue,
	}

	receivedDateRule = fieldRule{
		matchers: []matcher{
			pattern("french_date", `\b(?:lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)\s+\d{1,2}(?:er)?\s+`+
				`(?:janvier|f`+eAcute+`vrier|mars|avril|mai|juin|juillet|ao`+uHat+`t|septembre|octobre|novembre|d`+eAcute+`cembre)\s+\d{4}`, 0),
		},
		clean: cleanValue,
	}

	phoneOneRule = fieldRule{
		matchers: []matcher{pattern("telephone_1", `\b`+labelTelephone+`\s*1\b[\s:*]*(\+?\d[\d\s.\-]*\d)`, 1)},
		clean:    phoneDigits,
	}

	phoneTwoRule = fieldRule{
		matchers: []matcher{pattern("telephone_2", `\b`+labelTelephone+`\s*2\b[\s:*]*(\+?\d[\d\s.\-]*\d)`, 1)},
		clean:    phoneDigits,
	}

	requestTextRule = fieldRule{
		matchers: []matcher{pattern("commentaires", `\b`+labelCommentaires+`\b[\s:*]*(.*)$`, 1)},
		clean:    cleanValue,
	}
)

// ExtractFields applies every field rule to normalized body text.
func ExtractFields(text string) TicketFields {
	fields := TicketFields{
		CompanyName:  companyRule.apply(text),
		TicketNumber: ticketNumberRule.apply(text),
		ClientCode:   clientCodeRule.apply(text),
		Address:      addressRule.apply(text),
		ReceivedDate: receivedDateRule.apply(text),
		RequestText:  requestTextRule.apply(text),
	}

	phones := lo.Filter([]string{phoneOneRule.apply(text), phoneTwoRule.apply(text)}, func(p string, _ int) bool {
		return p != domain.NotFound
	})
	fields.PhoneNumbers = phones
	fields.Phones = domain.NotFound
	if len(phones) > 0 {
		fields.Phones = strings.Join(phones, ",")
	}
	return fields
}

func cleanValue(s string) string {
	return CollapseWhitespace(strings.Trim(strings.TrimSpace(s), "* "))
}

var phoneSeparators = regexp.MustCompile(`[\s.\-]+`)

// phoneDigits joins digit groups until a phone number is complete: 10 digits
// for a national number, 11 after "+", 13 after "00". A following group that
// would overflow, such as a postal code, is dropped.
func phoneDigits(s string) string {
	s = strings.TrimSpace(s)
	limit := 10
	switch {
	case strings.HasPrefix(s, "+"):
		limit = 11
	case strings.HasPrefix(s, "00"):
		limit = 13
	}
	var b strings.Builder
	for i, group := range phoneSeparators.Split(s, -1) {
		digits := digitsOnly(group)
		if i > 0 && b.Len()+len(digits) > limit {
			break
		}
		b.WriteString(digits)
	}
	return b.String()
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
