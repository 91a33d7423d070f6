package mailsource

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/api/gmail/v1"
)

func TestFromGmail(t *testing.T) {
	msg := fromGmail(&gmail.Message{
		Id: "abc",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Launch week"},
				{Name: "From", Value: "news@aiweekly.co"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "cGxhaW4"}},
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: "PHA-aHRtbDwvcD4"}},
				{MimeType: "multipart/related", Parts: []*gmail.MessagePart{{MimeType: "image/png"}}},
			},
		},
	})

	if msg.ID != "abc" || msg.MimeType != "multipart/alternative" {
		t.Errorf("Unexpected message %+v", msg)
	}
	if msg.Subject() != "Launch week" {
		t.Errorf("Expected subject carried over, got %q", msg.Subject())
	}
	if len(msg.Parts) != 3 {
		t.Fatalf("Expected 3 parts, got %d", len(msg.Parts))
	}
	if msg.Parts[1].Data != "PHA-aHRtbDwvcD4" {
		t.Errorf("Part data should be passed through untouched, got %q", msg.Parts[1].Data)
	}
	if len(msg.Parts[2].Parts) != 1 || msg.Parts[2].HasData() {
		t.Errorf("Nested part not converted: %+v", msg.Parts[2])
	}
}

func TestFromGmail_NoPayload(t *testing.T) {
	msg := fromGmail(&gmail.Message{Id: "x"})
	if msg.ID != "x" || msg.HasData() || len(msg.Parts) != 0 {
		t.Errorf("Expected empty message, got %+v", msg)
	}
}

func TestOAuthConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	creds := `{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	if err := os.WriteFile(path, []byte(creds), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := OAuthConfig(path)
	if err != nil {
		t.Fatalf("OAuthConfig failed: %v", err)
	}
	if cfg.ClientID != "id" || len(cfg.Scopes) != 1 || cfg.Scopes[0] != gmail.GmailReadonlyScope {
		t.Errorf("Unexpected config %+v", cfg)
	}

	if _, err := OAuthConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing credentials file")
	}
}
