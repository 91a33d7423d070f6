package mailsource

import (
	"fmt"
	"io"
	"strings"
	"wisgen/internal/core"
	"wisgen/internal/extract"

	"github.com/emersion/go-message"
	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
)

// FromRFC822 parses an RFC 822 message into a raw message. Part bodies are
// decoded from their transfer encoding and charset, then re-encoded as
// web-safe base64 so every source delivers the same shape. Nested multipart
// parts are kept as children.
func FromRFC822(id string, r io.Reader) (core.RawMessage, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return core.RawMessage{}, fmt.Errorf("failed to parse message %s: %w", id, err)
	}

	part, err := convertEntity(entity)
	if err != nil {
		return core.RawMessage{}, fmt.Errorf("failed to read message %s: %w", id, err)
	}

	return core.RawMessage{
		ID:       id,
		MimeType: part.MimeType,
		Headers:  part.Headers,
		Data:     part.Data,
		Parts:    part.Parts,
	}, nil
}

func convertEntity(entity *message.Entity) (core.MessagePart, error) {
	part := core.MessagePart{
		MimeType: mediaType(entity.Header),
		Headers:  headers(entity.Header),
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return part, err
			}
			converted, err := convertEntity(child)
			if err != nil {
				return part, err
			}
			part.Parts = append(part.Parts, converted)
		}
		return part, nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return part, err
	}
	if len(body) > 0 {
		part.Data = extract.Encode(body)
	}
	return part, nil
}

func mediaType(h message.Header) string {
	mediaType, _, err := h.ContentType()
	if err != nil || mediaType == "" {
		return "text/plain"
	}
	return strings.ToLower(mediaType)
}

// headers returns every header field in order, with encoded words decoded.
func headers(h message.Header) []core.Header {
	var result []core.Header
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		result = append(result, core.Header{Name: fields.Key(), Value: value})
	}
	return result
}
