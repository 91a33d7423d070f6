package mailsource

import (
	"bytes"
	"strings"
	"time"
	"wisgen/internal/core"

	"github.com/emersion/go-message/mail"
)

// readHeader parses the header block of a raw RFC 822 message.
func readHeader(raw []byte) (mail.Header, error) {
	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return mail.Header{}, err
	}
	defer r.Close()
	return r.Header, nil
}

// matches applies query to a message header for sources without server-side
// search. Senders match as case-insensitive substrings of From, After is
// compared against the Date header at day granularity, and UnreadOnly skips
// messages whose Status header carries the R flag.
func matches(header mail.Header, query core.Query) bool {
	if len(query.Senders) > 0 {
		from := strings.ToLower(header.Get("From"))
		found := false
		for _, sender := range query.Senders {
			if sender != "" && strings.Contains(from, strings.ToLower(sender)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !query.After.IsZero() {
		y, m, d := query.After.Date()
		since := time.Date(y, m, d, 0, 0, 0, 0, query.After.Location())
		date, err := header.Date()
		if err != nil || date.Before(since) {
			return false
		}
	}

	if query.UnreadOnly && strings.ContainsRune(header.Get("Status"), 'R') {
		return false
	}
	return true
}
