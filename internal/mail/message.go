// Package mail adapts the remote mailbox provider to the ingestion and reply
// pipelines.
package mail

import (
	"strings"
	"time"
)

// Header is one raw message header.
type Header struct {
	Name  string
	Value string
}

// Part is a node of a message's MIME tree. Data holds the decoded body bytes.
type Part struct {
	MimeType string
	Headers  []Header
	Data     []byte
	Parts    []*Part
}

// Message is a fully fetched provider message.
type Message struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Payload      *Part
	InternalDate time.Time
}

// Header returns the first top-level header matching name, case-insensitively.
func (m *Message) Header(name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
