// Package credential keeps the mail source secrets of wisgen in the system
// keyring, with an encrypted file as the last resort backend.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "wisgen"

// Keys under which the pipeline stores its secrets.
const (
	IMAPPasswordKey = "imap-password"
	POP3PasswordKey = "pop3-password"
	GmailTokenKey   = "gmail-token"
)

// secrets names every key wisgen stores, for labels and error messages.
var secrets = map[string]string{
	IMAPPasswordKey: "IMAP password",
	POP3PasswordKey: "POP3 password",
	GmailTokenKey:   "Gmail OAuth token",
}

var (
	// ErrNotFound is returned when the keyring has no item for a key.
	ErrNotFound = keyring.ErrKeyNotFound
	// ErrUnknownKey is returned for keys wisgen does not store.
	ErrUnknownKey = errors.New("unknown credential key")
)

// Opener opens the keyring. Tests replace it with an in-memory ring.
var Opener = openKeyring

// fileDir holds the file backend; WISGEN_CREDENTIALS_DIR overrides it.
func fileDir() string {
	if dir := os.Getenv("WISGEN_CREDENTIALS_DIR"); dir != "" {
		return dir
	}
	return "~/.config/wisgen/credentials"
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir(),
		FilePasswordFunc:         keyring.FixedStringPrompt("wisgen credentials file password"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening wisgen keyring: %w", err)
	}
	return ring, nil
}

// Describe returns the human name of a stored secret.
func Describe(key string) (string, error) {
	name, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return name, nil
}

// open validates key and opens the keyring.
func open(key string) (keyring.Keyring, string, error) {
	name, err := Describe(key)
	if err != nil {
		return nil, "", err
	}
	ring, err := Opener()
	if err != nil {
		return nil, "", err
	}
	return ring, name, nil
}

// Get returns the stored secret for key.
func Get(key string) (string, error) {
	ring, name, err := open(key)
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("reading %s from keyring: %w", name, err)
	}
	return string(item.Data), nil
}

// Set stores value under key, replacing any previous secret.
func Set(key string, value string) error {
	ring, name, err := open(key)
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "wisgen " + name,
		Description: "wisgen newsletter pipeline: " + name,
	})
	if err != nil {
		return fmt.Errorf("storing %s in keyring: %w", name, err)
	}
	return nil
}

// Delete removes the secret stored under key. Removing a missing secret
// returns ErrNotFound.
func Delete(key string) error {
	ring, name, err := open(key)
	if err != nil {
		return err
	}
	if _, err := ring.Get(key); err != nil {
		return fmt.Errorf("removing %s from keyring: %w", name, err)
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("removing %s from keyring: %w", name, err)
	}
	return nil
}

// Lookup returns the configured value when set and falls back to the keyring.
// A missing keyring item yields an empty string and no error.
func Lookup(configured, key string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	value, err := Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}
