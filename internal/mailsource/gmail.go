package mailsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"wisgen/internal/config"
	"wisgen/internal/core"
	"wisgen/internal/credential"
	"wisgen/internal/logger"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gmail reads newsletters through the Gmail API. Messages are only read;
// labels are never modified.
type Gmail struct {
	svc  *gmail.Service
	user string
	log  *slog.Logger
}

// NewGmail creates a Gmail source authorized with the stored OAuth token.
func NewGmail(ctx context.Context, cfg config.GmailConfig, log *slog.Logger) (*Gmail, error) {
	oauthCfg, err := OAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return NewGmailWithService(svc, cfg.User, log), nil
}

// NewGmailWithService wraps an existing Gmail service.
func NewGmailWithService(svc *gmail.Service, user string, log *slog.Logger) *Gmail {
	if user == "" {
		user = "me"
	}
	return &Gmail{svc: svc, user: user, log: logger.Or(log)}
}

// ListMessageIDs runs query as a Gmail search.
func (s *Gmail) ListMessageIDs(ctx context.Context, query core.Query) ([]string, error) {
	call := s.svc.Users.Messages.List(s.user).Q(query.String()).Context(ctx)
	if query.MaxResults > 0 {
		call = call.MaxResults(int64(query.MaxResults))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list Gmail messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// FetchMessage fetches the full payload of one message.
func (s *Gmail) FetchMessage(ctx context.Context, id string) (core.RawMessage, error) {
	msg, err := s.svc.Users.Messages.Get(s.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return core.RawMessage{}, fmt.Errorf("gmail message %s: %w", id, ErrNotFound)
		}
		return core.RawMessage{}, fmt.Errorf("failed to fetch Gmail message %s: %w", id, err)
	}
	return fromGmail(msg), nil
}

func fromGmail(msg *gmail.Message) core.RawMessage {
	raw := core.RawMessage{ID: msg.Id}
	if msg.Payload == nil {
		return raw
	}
	part := fromGmailPart(msg.Payload)
	raw.MimeType = part.MimeType
	raw.Headers = part.Headers
	raw.Data = part.Data
	raw.Parts = part.Parts
	return raw
}

func fromGmailPart(p *gmail.MessagePart) core.MessagePart {
	part := core.MessagePart{MimeType: p.MimeType}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, core.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, fromGmailPart(child))
	}
	return part
}

// OAuthConfig reads the OAuth client credentials file downloaded from the
// Google Cloud console.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read Gmail credentials %s: %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Gmail credentials: %w", err)
	}
	return cfg, nil
}

// LoadToken returns the OAuth token from the keyring, falling back to tokenFile.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	stored, err := credential.Lookup("", credential.GmailTokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read Gmail token from keyring: %w", err)
	}

	data := []byte(stored)
	if stored == "" {
		if data, err = os.ReadFile(tokenFile); err != nil {
			return nil, fmt.Errorf("no Gmail token found; run 'wisgen auth gmail': %w", err)
		}
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("failed to parse Gmail token: %w", err)
	}
	return token, nil
}

// SaveToken stores token in the keyring and, when tokenFile is set, on disk.
func SaveToken(token *oauth2.Token, tokenFile string) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode Gmail token: %w", err)
	}
	if err := credential.Set(credential.GmailTokenKey, string(data)); err != nil {
		return err
	}
	if tokenFile == "" {
		return nil
	}
	if err := os.WriteFile(tokenFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write Gmail token: %w", err)
	}
	return nil
}
