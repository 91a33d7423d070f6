package pipeline

import (
	"context"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/store"
	"wisgen/internal/summarize"
	"wisgen/internal/trends"
	"wisgen/internal/weekly"
)

// Clock returns the current time. Stages take "today" from it.
type Clock func() time.Time

// MessageSource lists and fetches candidate messages
type MessageSource interface {
	// ListMessageIDs returns the ids of messages matching query
	ListMessageIDs(ctx context.Context, query core.Query) ([]string, error)

	// FetchMessage returns the full message with id
	FetchMessage(ctx context.Context, id string) (core.RawMessage, error)
}

// DocumentExtractor picks the readable representation of a message
type DocumentExtractor interface {
	Extract(msg core.RawMessage) (core.NormalizedDocument, bool, error)
}

// SenderPolicy decides whether a sender is allow-listed
type SenderPolicy interface {
	Accept(sender string) bool
}

// DocumentSaver persists accepted documents
type DocumentSaver interface {
	Save(doc core.NormalizedDocument) (string, error)
}

// InsightSynthesizer generates insights for one document
type InsightSynthesizer interface {
	Summarize(ctx context.Context, doc core.NormalizedDocument) summarize.Result
}

// BatchWriter persists the day's insights
type BatchWriter interface {
	Write(batch core.DailyBatch) (string, error)
}

// TrendAnalyzer produces the full-history trend report
type TrendAnalyzer interface {
	Analyze(ctx context.Context) (*trends.Report, error)
}

// WeeklySynthesizer produces the weekly digest
type WeeklySynthesizer interface {
	// Run writes the digest when today is the end of the week
	Run(ctx context.Context) (*weekly.Digest, error)

	// RunFor writes the digest for the window ending on end
	RunFor(ctx context.Context, end time.Time) (*weekly.Digest, error)
}

// NewsletterRewriter rewrites a saved HTML newsletter
type NewsletterRewriter interface {
	Rewrite(ctx context.Context, html string) summarize.Result
}

// DocumentLister lists and reads saved newsletters
type DocumentLister interface {
	List() ([]store.DocumentInfo, error)
	Read(name string) (string, error)
}

// ProcessedWriter persists rewritten newsletters
type ProcessedWriter interface {
	Exists(original string) bool
	Write(original, html string) (string, error)
}

// RunRecorder stores an audit record per stage execution
type RunRecorder interface {
	Record(ctx context.Context, run store.Run) (store.Run, error)
}
