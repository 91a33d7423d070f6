package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"wisgen/internal/core"
	"wisgen/internal/extract"
	"wisgen/internal/llm"
	"wisgen/internal/logger"
)

// DefaultMaxContentChars bounds the document text sent to the LLM.
const DefaultMaxContentChars = 8000

// ErrEmptyContent is reported when a document has no text worth sending.
var ErrEmptyContent = errors.New("no content found to analyze")

// Result is the outcome of one synthesis call: either text or an error.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the result holds generated text.
func (r Result) OK() bool {
	return r.Err == nil
}

// String flattens the result into the text stored in an insight entry.
func (r Result) String() string {
	switch {
	case r.Err == nil:
		return r.Text
	case errors.Is(r.Err, ErrEmptyContent):
		return "No content found to analyze"
	default:
		return fmt.Sprintf("Error generating content: %v", r.Err)
	}
}

// Insight converts the result into a persisted entry for doc.
func (r Result) Insight(doc core.NormalizedDocument) core.Insight {
	return core.Insight{
		Source:   doc.Sender,
		Subject:  doc.Subject,
		Date:     doc.Date,
		Insights: r.String(),
		Failed:   !r.OK(),
	}
}

// Options configures a Summarizer.
type Options struct {
	Model           string // Empty selects the client's default
	MaxContentChars int    // Zero selects DefaultMaxContentChars
}

// Summarizer produces 3 to 5 bullet insights per newsletter.
type Summarizer struct {
	llmClient llm.Completer
	options   Options
	log       *slog.Logger
}

// NewSummarizer creates a new summarizer with the given LLM client.
func NewSummarizer(llmClient llm.Completer, options Options, log *slog.Logger) *Summarizer {
	if options.MaxContentChars <= 0 {
		options.MaxContentChars = DefaultMaxContentChars
	}
	return &Summarizer{
		llmClient: llmClient,
		options:   options,
		log:       logger.Or(log),
	}
}

// Summarize returns the insights of doc. Failures are carried in the result,
// never returned or raised.
func (s *Summarizer) Summarize(ctx context.Context, doc core.NormalizedDocument) Result {
	content := extract.Text(doc)
	if strings.TrimSpace(content) == "" {
		return Result{Err: ErrEmptyContent}
	}

	prompt := BuildInsightPrompt(doc, truncateContent(content, s.options.MaxContentChars))

	s.log.Info("Generating insights", "subject", doc.Subject, "date", doc.Date)
	text, err := s.llmClient.Complete(ctx, prompt, s.options.Model)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: strings.TrimSpace(text)}
}

// Rewriter turns a raw HTML newsletter into a cleaned, annotated HTML page.
type Rewriter struct {
	llmClient llm.Completer
	model     string
}

// NewRewriter creates a rewriter using model (empty for the client default).
func NewRewriter(llmClient llm.Completer, model string) *Rewriter {
	return &Rewriter{llmClient: llmClient, model: model}
}

// Rewrite sends html through the rewrite prompt.
func (r *Rewriter) Rewrite(ctx context.Context, html string) Result {
	if strings.TrimSpace(html) == "" {
		return Result{Err: ErrEmptyContent}
	}
	text, err := r.llmClient.Complete(ctx, BuildRewritePrompt(html), r.model)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: text}
}
