package mailsource

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
	"wisgen/internal/config"
	"wisgen/internal/core"
	"wisgen/internal/logger"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAP reads newsletters from an IMAP mailbox. Message ids are UIDs of the
// configured folder. Messages are fetched with PEEK, so nothing is marked read.
type IMAP struct {
	cfg config.IMAPConfig
	log *slog.Logger
}

// NewIMAP creates a new IMAP source.
func NewIMAP(cfg config.IMAPConfig, log *slog.Logger) *IMAP {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &IMAP{cfg: cfg, log: logger.Or(log)}
}

func dialIMAP(addr string, useTLS bool) (*imapclient.Client, error) {
	if useTLS {
		return imapclient.DialTLS(addr, nil)
	}
	return imapclient.DialStartTLS(addr, nil)
}

// connect establishes a connection, authenticates and selects the folder.
// The caller is responsible for calling Logout on the returned client.
func (s *IMAP) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	client, err := dialIMAP(addr, s.cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", s.cfg.Username, err)
	}

	if _, err := client.Select(s.cfg.Folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", s.cfg.Folder, err)
	}
	return client, nil
}

// ListMessageIDs searches the folder. Provider categories have no IMAP
// equivalent and are ignored.
func (s *IMAP) ListMessageIDs(ctx context.Context, query core.Query) ([]string, error) {
	if len(query.Categories) > 0 {
		s.log.Debug("IMAP source ignores categories", "categories", query.Categories)
	}

	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	searchData, err := client.UIDSearch(SearchCriteria(query), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	// Take the most recent messages.
	if query.MaxResults > 0 && len(uids) > query.MaxResults {
		uids = uids[len(uids)-query.MaxResults:]
	}

	ids := make([]string, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		ids = append(ids, strconv.FormatUint(uint64(uids[i]), 10))
	}
	return ids, nil
}

// SearchCriteria translates a query into IMAP search criteria: senders are
// OR-ed FROM header matches, After becomes SINCE, UnreadOnly becomes UNSEEN.
func SearchCriteria(query core.Query) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	if !query.After.IsZero() {
		y, m, d := query.After.Date()
		criteria.Since = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if query.UnreadOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	var senders []imap.SearchCriteria
	for _, sender := range query.Senders {
		if sender == "" {
			continue
		}
		senders = append(senders, imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: sender}},
		})
	}
	switch len(senders) {
	case 0:
	case 1:
		criteria.Header = append(criteria.Header, senders[0].Header...)
	default:
		criteria.Or = append(criteria.Or, orChain(senders))
	}
	return criteria
}

// orChain nests OR keys pairwise: OR a (OR b c).
func orChain(terms []imap.SearchCriteria) [2]imap.SearchCriteria {
	if len(terms) == 2 {
		return [2]imap.SearchCriteria{terms[0], terms[1]}
	}
	return [2]imap.SearchCriteria{terms[0], {Or: [][2]imap.SearchCriteria{orChain(terms[1:])}}}
}

// FetchMessage fetches the full message with the given UID.
func (s *IMAP) FetchMessage(ctx context.Context, id string) (core.RawMessage, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return core.RawMessage{}, fmt.Errorf("invalid IMAP message id %q: %w", id, err)
	}

	client, err := s.connect()
	if err != nil {
		return core.RawMessage{}, err
	}
	defer func() { _ = client.Logout().Wait() }()

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return core.RawMessage{}, fmt.Errorf("UID %d: %w", uid, ErrNotFound)
	}

	buf, err := msg.Collect()
	if err != nil {
		return core.RawMessage{}, fmt.Errorf("collecting message data: %w", err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return core.RawMessage{}, fmt.Errorf("UID %d has no body: %w", uid, ErrNotFound)
	}
	return FromRFC822(id, bytes.NewReader(raw))
}
