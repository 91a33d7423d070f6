package core

import (
	"fmt"
	"strings"
	"time"
)

// Header is a single name/value pair from a message header block.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MessagePart is one node of a message's part tree.
type MessagePart struct {
	MimeType string        `json:"mime_type"`       // Declared media type, e.g. "text/html"
	Headers  []Header      `json:"headers"`         // Part-level headers
	Data     string        `json:"data,omitempty"`  // Web-safe base64 inline data; empty means none
	Parts    []MessagePart `json:"parts,omitempty"` // Nested parts of a multipart part
}

// HasData reports whether the part carries inline data.
func (p MessagePart) HasData() bool {
	return p.Data != ""
}

// RawMessage is a message as delivered by a mail source.
type RawMessage struct {
	ID       string        `json:"id"`              // Source-specific message identifier
	MimeType string        `json:"mime_type"`       // Media type of the message itself
	Headers  []Header      `json:"headers"`         // Top-level headers, not guaranteed unique or present
	Data     string        `json:"data,omitempty"`  // Web-safe base64 body when the message is not multipart
	Parts    []MessagePart `json:"parts,omitempty"` // Immediate parts
}

// Header returns the value of the named header. Lookup is case-insensitive and
// the last occurrence wins when a header is repeated.
func (m RawMessage) Header(name string) (string, bool) {
	value, found := "", false
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			value, found = h.Value, true
		}
	}
	return value, found
}

func (m RawMessage) headerOr(name, fallback string) string {
	if v, ok := m.Header(name); ok {
		return v
	}
	return fallback
}

// Subject returns the Subject header or "No Subject".
func (m RawMessage) Subject() string { return m.headerOr("Subject", "No Subject") }

// Sender returns the From header or "Unknown".
func (m RawMessage) Sender() string { return m.headerOr("From", "Unknown") }

// Date returns the Date header or "Unknown".
func (m RawMessage) Date() string { return m.headerOr("Date", "Unknown") }

// HasData reports whether the message itself carries inline data.
func (m RawMessage) HasData() bool {
	return m.Data != ""
}

// Format tags the representation of a normalized document.
type Format string

const (
	FormatHTML  Format = "html"
	FormatPlain Format = "plain"
)

// DocumentKey is the sort and dedupe key of a document.
type DocumentKey struct {
	Date    string
	Subject string
}

// NormalizedDocument is the single textual representation chosen for a message.
type NormalizedDocument struct {
	Format  Format `json:"format"`
	Text    string `json:"text"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
}

// Key returns the (date, subject) key of the document.
func (d NormalizedDocument) Key() DocumentKey {
	return DocumentKey{Date: d.Date, Subject: d.Subject}
}

// Accepted reports whether the document has usable text.
func (d NormalizedDocument) Accepted() bool {
	return strings.TrimSpace(d.Text) != ""
}

// Insight is the LLM-produced summary of one newsletter.
type Insight struct {
	Source   string `json:"source"`           // Sender of the newsletter
	Subject  string `json:"subject"`          // Subject line
	Date     string `json:"date"`             // Date header as received
	Insights string `json:"insights"`         // Synthesized bullets, or the failure text
	Failed   bool   `json:"failed,omitempty"` // Set when Insights holds a failure description
}

// WithoutFailures returns the entries that hold synthesized insights and the
// number of failed entries left out.
func WithoutFailures(entries []Insight) ([]Insight, int) {
	usable := make([]Insight, 0, len(entries))
	for _, e := range entries {
		if !e.Failed {
			usable = append(usable, e)
		}
	}
	return usable, len(entries) - len(usable)
}

// DailyBatch is every insight generated by one run for one calendar date.
type DailyBatch struct {
	Date     string    `json:"date"`
	Insights []Insight `json:"insights"`
}

// DateLayout is the calendar date format used in file names.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar date string.
func Day(t time.Time) string {
	return t.Format(DateLayout)
}

// Query describes which messages a mail source should list.
type Query struct {
	Senders    []string  // Sender addresses, OR-ed together
	Categories []string  // Provider categories, OR-ed together
	After      time.Time // Lower date bound (zero means none)
	UnreadOnly bool      // Restrict to unread messages
	MaxResults int       // Upper bound on listed ids (0 means provider default)
}

// String renders the query in the Gmail search grammar.
func (q Query) String() string {
	var clauses []string
	if group := orGroup("from", q.Senders); group != "" {
		clauses = append(clauses, group)
	}
	if group := orGroup("category", q.Categories); group != "" {
		clauses = append(clauses, group)
	}
	if !q.After.IsZero() {
		clauses = append(clauses, "after:"+q.After.Format("2006/01/02"))
	}
	if q.UnreadOnly {
		clauses = append(clauses, "is:unread")
	}
	return strings.Join(clauses, " ")
}

func orGroup(field string, values []string) string {
	var terms []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		terms = append(terms, fmt.Sprintf("%s:%s", field, v))
	}
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return terms[0]
	default:
		return "(" + strings.Join(terms, " OR ") + ")"
	}
}

// RunStats counts what happened to the candidates of one daily run.
type RunStats struct {
	Candidates       int `json:"candidates" db:"candidates"`
	FetchFailures    int `json:"fetch_failures" db:"fetch_failures"`
	DecodeFailures   int `json:"decode_failures" db:"decode_failures"`
	Dropped          int `json:"dropped" db:"dropped"`   // No usable content
	Rejected         int `json:"rejected" db:"rejected"` // Sender not allow-listed
	Saved            int `json:"saved" db:"saved"`
	Summarized       int `json:"summarized" db:"summarized"`
	SynthesisFailure int `json:"synthesis_failures" db:"synthesis_failures"`
}
