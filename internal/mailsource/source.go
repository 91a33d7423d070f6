// Package mailsource lists and fetches newsletter messages from a mailbox
// and hands them to the pipeline as core.RawMessage values.
package mailsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"wisgen/internal/config"
	"wisgen/internal/core"
	"wisgen/internal/credential"
)

// ErrNotFound is returned by FetchMessage for an unknown message id.
var ErrNotFound = errors.New("message not found")

// Source is a mailbox the pipeline can query.
type Source interface {
	// ListMessageIDs returns up to query.MaxResults ids matching query.
	ListMessageIDs(ctx context.Context, query core.Query) ([]string, error)

	// FetchMessage returns the full message with id.
	FetchMessage(ctx context.Context, id string) (core.RawMessage, error)
}

// Open builds the source selected by cfg.Kind. Secrets missing from the
// configuration are looked up in the keyring.
func Open(ctx context.Context, cfg config.Source, log *slog.Logger) (Source, error) {
	switch cfg.Kind {
	case "", "gmail":
		return NewGmail(ctx, cfg.Gmail, log)
	case "imap":
		password, err := credential.Lookup(cfg.IMAP.Password, credential.IMAPPasswordKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read IMAP password: %w", err)
		}
		if password == "" {
			return nil, fmt.Errorf("IMAP password is not configured; run 'wisgen auth imap' or set IMAP_PASSWORD")
		}
		imapCfg := cfg.IMAP
		imapCfg.Password = password
		return NewIMAP(imapCfg, log), nil
	case "pop3":
		password, err := credential.Lookup(cfg.POP3.Password, credential.POP3PasswordKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read POP3 password: %w", err)
		}
		if password == "" {
			return nil, fmt.Errorf("POP3 password is not configured; run 'wisgen auth pop3' or set POP3_PASSWORD")
		}
		pop3Cfg := cfg.POP3
		pop3Cfg.Password = password
		return NewPOP3(pop3Cfg, log), nil
	case "mbox":
		return NewMbox(cfg.Mbox.Path, log)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
