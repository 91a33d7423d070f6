package extract

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
	"wisgen/internal/core"
)

var (
	// ErrDecode marks inline data that is not web-safe base64 encoded UTF-8.
	ErrDecode = errors.New("failed to decode message data")
	// ErrUnknownStrategy is returned by New for an unregistered strategy name.
	ErrUnknownStrategy = errors.New("unknown extraction strategy")
)

// StrategyName identifies one way of pulling a document out of a message.
type StrategyName string

const (
	// HTMLPart takes the first immediate text/html part with inline data.
	HTMLPart StrategyName = "html-part"
	// PlainPart takes the first immediate text/plain part with inline data.
	PlainPart StrategyName = "plain-part"
	// MessageBody takes the message's own inline data, classified by its media type.
	MessageBody StrategyName = "message-body"
)

// DefaultOrder is the fallback order used by the pipeline. The first strategy
// that yields non-blank text wins.
var DefaultOrder = []StrategyName{HTMLPart, PlainPart, MessageBody}

// strategy returns the format and decoded text, ok=false when it does not apply.
type strategy func(msg core.RawMessage) (core.Format, string, bool, error)

var strategies = map[StrategyName]strategy{
	HTMLPart:    partStrategy("text/html", core.FormatHTML),
	PlainPart:   partStrategy("text/plain", core.FormatPlain),
	MessageBody: messageBodyStrategy,
}

// Extractor turns raw messages into normalized documents.
type Extractor struct {
	order []StrategyName
}

// New builds an extractor trying the given strategies in order.
// With no arguments it uses DefaultOrder.
func New(order ...StrategyName) (*Extractor, error) {
	if len(order) == 0 {
		order = DefaultOrder
	}
	for _, name := range order {
		if _, ok := strategies[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
	}
	return &Extractor{order: append([]StrategyName(nil), order...)}, nil
}

// NewDefault returns an extractor using DefaultOrder.
func NewDefault() *Extractor {
	return &Extractor{order: append([]StrategyName(nil), DefaultOrder...)}
}

// Order returns the strategy order of the extractor.
func (e *Extractor) Order() []StrategyName {
	return append([]StrategyName(nil), e.order...)
}

// Extract returns the normalized document of msg. ok is false when no strategy
// produced text; the message must then be dropped. A decode failure is returned
// as an error and applies to this message only.
func (e *Extractor) Extract(msg core.RawMessage) (core.NormalizedDocument, bool, error) {
	for _, name := range e.order {
		format, text, applies, err := strategies[name](msg)
		if err != nil {
			return core.NormalizedDocument{}, false, fmt.Errorf("message %s, %s: %w", msg.ID, name, err)
		}
		if !applies || strings.TrimSpace(text) == "" {
			continue
		}
		return core.NormalizedDocument{
			Format:  format,
			Text:    text,
			Subject: msg.Subject(),
			Sender:  msg.Sender(),
			Date:    msg.Date(),
		}, true, nil
	}
	return core.NormalizedDocument{}, false, nil
}

// partStrategy scans only the immediate parts list; nested multiparts are not visited.
func partStrategy(mimeType string, format core.Format) strategy {
	return func(msg core.RawMessage) (core.Format, string, bool, error) {
		for _, part := range msg.Parts {
			if part.MimeType != mimeType || !part.HasData() {
				continue
			}
			text, err := Decode(part.Data)
			if err != nil {
				return "", "", false, err
			}
			return format, text, true, nil
		}
		return "", "", false, nil
	}
}

func messageBodyStrategy(msg core.RawMessage) (core.Format, string, bool, error) {
	if !msg.HasData() {
		return "", "", false, nil
	}
	text, err := Decode(msg.Data)
	if err != nil {
		return "", "", false, err
	}
	if msg.MimeType == "text/html" {
		return core.FormatHTML, text, true, nil
	}
	return core.FormatPlain, text, true, nil
}

// Decode decodes web-safe base64 data (padding optional) into UTF-8 text.
func Decode(data string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(data), "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	return string(raw), nil
}

// Encode is the inverse of Decode, used by sources that build raw messages.
func Encode(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}
