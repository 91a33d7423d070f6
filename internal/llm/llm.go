package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.0-flash"
	// DefaultLanguageDirective is appended to every prompt.
	DefaultLanguageDirective = "Generate responses only in English"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Completer turns a prompt into generated text. An empty model selects the
// implementation's default.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Options configures a Client.
type Options struct {
	APIKey            string
	Model             string
	Timeout           time.Duration // HTTP timeout per call; zero means none
	LanguageDirective string        // Appended to every prompt; "-" disables it
}

// Client represents a client for the Gemini API.
type Client struct {
	apiKey    string
	modelName string
	directive string
	gClient   *genai.Client
}

// NewClient creates a new Gemini client.
// The API key is taken from opts, then from the environment
// (GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, GOOGLE_AI_API_KEY, API_KEY).
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := ResolveAPIKey(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	directive := opts.LanguageDirective
	switch directive {
	case "":
		directive = DefaultLanguageDirective
	case "-":
		directive = ""
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	gClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:    apiKey,
		modelName: modelName,
		directive: directive,
		gClient:   gClient,
	}, nil
}

// ResolveAPIKey returns configured, or the first non-empty key environment variable.
func ResolveAPIKey(configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY", "API_KEY"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Complete sends prompt to the model in a single attempt.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.modelName
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: WithDirective(prompt, c.directive)}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GetModelName returns the default model of the client.
func (c *Client) GetModelName() string {
	return c.modelName
}

// WithDirective appends the language directive to prompt.
func WithDirective(prompt, directive string) string {
	if directive == "" {
		return prompt
	}
	return prompt + " " + directive
}
