package mail

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// LoadEML parses a saved RFC 822 message into the provider message shape so
// offline tooling can run the extractors against it.
func LoadEML(r io.Reader) (*Message, error) {
	entity, err := gomessage.Read(r)
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	root, err := readEntity(entity)
	if err != nil {
		return nil, err
	}

	header := gomail.Header{Header: entity.Header}
	msg := &Message{Payload: root}
	if id, err := header.MessageID(); err == nil {
		msg.ID = id
	}
	if date, err := header.Date(); err == nil {
		msg.InternalDate = date.UTC()
	}
	return msg, nil
}

func readEntity(entity *gomessage.Entity) (*Part, error) {
	mediaType, _, err := entity.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	part := &Part{MimeType: strings.ToLower(mediaType)}

	fields := entity.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		part.Headers = append(part.Headers, Header{Name: fields.Key(), Value: value})
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
				return nil, fmt.Errorf("read part: %w", err)
			}
			converted, err := readEntity(child)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, converted)
		}
		return part, nil
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	part.Data = data
	return part, nil
}
