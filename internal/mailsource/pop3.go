package mailsource

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"wisgen/internal/config"
	"wisgen/internal/core"
	"wisgen/internal/logger"

	"github.com/emersion/go-message/mail"
	pop3client "github.com/knadh/go-pop3"
)

// POP3 reads newsletters from a POP3 mailbox. Message ids are UIDL values
// when the server supports them, message numbers otherwise. Messages are
// never deleted. POP3 has no seen flag, so UnreadOnly is only honored
// through a Status header written by the server.
type POP3 struct {
	cfg config.POP3Config
	log *slog.Logger
}

// NewPOP3 creates a new POP3 source.
func NewPOP3(cfg config.POP3Config, log *slog.Logger) *POP3 {
	if cfg.Port == 0 {
		cfg.Port = 995
	}
	return &POP3{cfg: cfg, log: logger.Or(log)}
}

// connect opens an authenticated session. The caller must Quit it.
func (s *POP3) connect() (*pop3client.Conn, error) {
	client := pop3client.New(pop3client.Opt{
		Host:       s.cfg.Host,
		Port:       s.cfg.Port,
		TLSEnabled: s.cfg.TLS,
	})

	conn, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("pop3 connect %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	if err := conn.Auth(s.cfg.Username, s.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("pop3 auth %s: %w", s.cfg.Username, err)
	}
	return conn, nil
}

// messageIDs returns the mailbox listing with a stable id per message.
func (s *POP3) messageIDs(conn *pop3client.Conn) ([]pop3client.MessageID, error) {
	msgs, err := conn.Uidl(0)
	if err == nil {
		return msgs, nil
	}
	s.log.Debug("POP3 server has no UIDL, falling back to LIST", "error", err)
	if msgs, err = conn.List(0); err != nil {
		return nil, fmt.Errorf("pop3 list: %w", err)
	}
	return msgs, nil
}

func stableID(msg pop3client.MessageID) string {
	if msg.UID != "" {
		return msg.UID
	}
	return strconv.Itoa(msg.ID)
}

// ListMessageIDs returns the newest matching messages first. Only headers
// are downloaded for filtering.
func (s *POP3) ListMessageIDs(ctx context.Context, query core.Query) ([]string, error) {
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Quit() }()

	msgs, err := s.messageIDs(conn)
	if err != nil {
		return nil, err
	}

	var ids []string
	for i := len(msgs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		entity, err := conn.Top(msgs[i].ID, 0)
		if err != nil {
			s.log.Warn("pop3 header retrieve failed", "msg_id", msgs[i].ID, "error", err)
			continue
		}
		if !matches(mail.Header{Header: entity.Header}, query) {
			continue
		}

		ids = append(ids, stableID(msgs[i]))
		if query.MaxResults > 0 && len(ids) >= query.MaxResults {
			break
		}
	}
	return ids, nil
}

// FetchMessage downloads the full message with id.
func (s *POP3) FetchMessage(ctx context.Context, id string) (core.RawMessage, error) {
	conn, err := s.connect()
	if err != nil {
		return core.RawMessage{}, err
	}
	defer func() { _ = conn.Quit() }()

	msgs, err := s.messageIDs(conn)
	if err != nil {
		return core.RawMessage{}, err
	}

	for _, msg := range msgs {
		if stableID(msg) != id {
			continue
		}
		raw, err := conn.RetrRaw(msg.ID)
		if err != nil {
			return core.RawMessage{}, fmt.Errorf("pop3 retrieve %s: %w", id, err)
		}
		return FromRFC822(id, raw)
	}
	return core.RawMessage{}, fmt.Errorf("pop3 message %s: %w", id, ErrNotFound)
}
