package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"wisgen/internal/config"
	"wisgen/internal/credential"
	"wisgen/internal/mailsource"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

// NewAuthCmd creates the auth command group
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store mail source credentials in the system keyring",
	}

	cmd.AddCommand(newPasswordAuthCmd("imap", "IMAP", credential.IMAPPasswordKey))
	cmd.AddCommand(newPasswordAuthCmd("pop3", "POP3", credential.POP3PasswordKey))
	cmd.AddCommand(newGmailAuthCmd())
	return cmd
}

func newPasswordAuthCmd(use, name, key string) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Store the %s password in the keyring", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove {
				err := credential.Delete(key)
				if errors.Is(err, credential.ErrNotFound) {
					fmt.Printf("No %s password stored\n", name)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s password removed from keyring\n", name)
				return nil
			}

			password, err := readSecret(fmt.Sprintf("%s password: ", name))
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("empty password, nothing stored")
			}
			if err := credential.Set(key, password); err != nil {
				return err
			}
			fmt.Printf("%s password stored in keyring\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "delete", false, "remove the stored password")
	return cmd
}

func newGmailAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail",
		Short: "Authorize read-only Gmail access and store the OAuth token",
		Long: `Authorize wisgen to read your Gmail messages.

Download an OAuth client (Desktop app) from the Google Cloud console and
point source.gmail.credentials_file at it. Open the printed URL, approve
read-only access and paste the authorization code back here. The token is
stored in the keyring and written to source.gmail.token_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gmailCfg := config.Get().Source.Gmail

			oauthCfg, err := mailsource.OAuthConfig(gmailCfg.CredentialsFile)
			if err != nil {
				return err
			}

			authURL := oauthCfg.AuthCodeURL("wisgen", oauth2.AccessTypeOffline)
			fmt.Printf("Open this link in your browser and authorize wisgen:\n\n  %s\n\n", authURL)
			fmt.Print("Authorization code: ")

			code, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}

			token, err := oauthCfg.Exchange(cmd.Context(), strings.TrimSpace(code))
			if err != nil {
				return fmt.Errorf("failed to exchange authorization code: %w", err)
			}
			if err := mailsource.SaveToken(token, gmailCfg.TokenFile); err != nil {
				return err
			}
			fmt.Println("Gmail token stored")
			return nil
		},
	}
}

// readSecret prompts for a secret without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
