package mailsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"wisgen/internal/core"
	"wisgen/internal/logger"

	mboxlib "github.com/emersion/go-mbox"
)

// Mbox reads newsletters from a local mbox file. Message ids are the
// 1-based positions of the messages in the file.
type Mbox struct {
	path string
	log  *slog.Logger

	mu       sync.Mutex
	messages map[string][]byte
}

// NewMbox creates a new mbox source for path.
func NewMbox(path string, log *slog.Logger) (*Mbox, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &Mbox{path: path, log: logger.Or(log)}, nil
}

// load reads every message of the file into memory.
func (s *Mbox) load(ctx context.Context) (map[string][]byte, []string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	messages := make(map[string][]byte)
	var order []string

	for idx := 1; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, nil, fmt.Errorf("read mbox message %d: %w", idx, err)
		}
		id := strconv.Itoa(idx)
		messages[id] = raw
		order = append(order, id)
	}

	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()
	return messages, order, nil
}

// ListMessageIDs returns the newest matching messages first, filtered as
// described on matches.
func (s *Mbox) ListMessageIDs(ctx context.Context, query core.Query) ([]string, error) {
	messages, order, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		header, err := readHeader(messages[id])
		if err != nil {
			s.log.Warn("Skipping unparsable mbox message", "id", id, "error", err)
			continue
		}
		if !matches(header, query) {
			continue
		}
		ids = append(ids, id)
		if query.MaxResults > 0 && len(ids) >= query.MaxResults {
			break
		}
	}
	return ids, nil
}

// FetchMessage returns the message at position id.
func (s *Mbox) FetchMessage(ctx context.Context, id string) (core.RawMessage, error) {
	s.mu.Lock()
	messages := s.messages
	s.mu.Unlock()

	if messages == nil {
		var err error
		if messages, _, err = s.load(ctx); err != nil {
			return core.RawMessage{}, err
		}
	}

	raw, ok := messages[id]
	if !ok {
		return core.RawMessage{}, fmt.Errorf("mbox message %s: %w", id, ErrNotFound)
	}
	return FromRFC822(id, bytes.NewReader(raw))
}
