// Package extract turns provider messages into ticket fields.
package extract

import (
	"html"
	"io"
	"mime/quotedprintable"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/sector-mail-desk/internal/mail"
)

var qpEscape = regexp.MustCompile(`=(?:[0-9A-Fa-f]{2}|\r?\n)`)

// BodyExtractor flattens a message's MIME tree into one normalized string.
type BodyExtractor struct {
	policy *bluemonday.Policy
	logger *zap.Logger
}

// NewBodyExtractor builds an extractor that strips every tag.
func NewBodyExtractor(logger *zap.Logger) *BodyExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &BodyExtractor{policy: policy, logger: logger}
}

// Extract prefers the first text/html part and falls back to the first
// text/plain part. It returns "" when the message has no text part.
func (e *BodyExtractor) Extract(msg *mail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	var htmlPart, plainPart *mail.Part
	walkParts(msg.Payload, &htmlPart, &plainPart)

	var text string
	switch {
	case htmlPart != nil:
		text = html.UnescapeString(e.policy.Sanitize(string(htmlPart.Data)))
		text = e.decodeQuotedPrintable(msg.ID, text)
	case plainPart != nil:
		text = e.decodeQuotedPrintable(msg.ID, string(plainPart.Data))
	default:
		return ""
	}
	return norm.NFC.String(CollapseWhitespace(text))
}

func walkParts(part *mail.Part, htmlPart, plainPart **mail.Part) {
	if part == nil {
		return
	}
	switch part.MimeType {
	case "text/html":
		if *htmlPart == nil {
			*htmlPart = part
		}
	case "text/plain":
		if *plainPart == nil {
			*plainPart = part
		}
	}
	for _, child := range part.Parts {
		walkParts(child, htmlPart, plainPart)
	}
}

// decodeQuotedPrintable decodes leftover =XX escapes and soft breaks. Any
// failure leaves the text untouched.
func (e *BodyExtractor) decodeQuotedPrintable(messageID, text string) string {
	if !qpEscape.MatchString(text) {
		return text
	}
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(text)))
	if err != nil {
		e.logger.Warn("quoted-printable decode failed, keeping raw text",
			zap.String("message_id", messageID), zap.Error(err))
		return text
	}
	if !utf8.Valid(decoded) {
		e.logger.Debug("quoted-printable decode produced invalid utf-8, keeping raw text",
			zap.String("message_id", messageID))
		return text
	}
	return string(decoded)
}

// CollapseWhitespace folds every whitespace run, non-breaking spaces
// included, into one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
