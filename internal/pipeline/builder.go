package pipeline

import (
	"fmt"
	"log/slog"
	"time"
	"wisgen/internal/config"
	"wisgen/internal/cost"
	"wisgen/internal/extract"
	"wisgen/internal/llm"
	"wisgen/internal/logger"
	"wisgen/internal/policy"
	"wisgen/internal/store"
	"wisgen/internal/summarize"
	"wisgen/internal/trends"
	"wisgen/internal/weekly"
)

// Builder helps construct a fully configured Runner
type Builder struct {
	cfg       *config.Config
	source    MessageSource
	completer llm.Completer
	ledger    RunRecorder
	now       Clock
	log       *slog.Logger
}

// NewBuilder creates a new runner builder over cfg
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg: cfg,
		now: time.Now,
	}
}

// WithSource sets the mail source
func (b *Builder) WithSource(source MessageSource) *Builder {
	b.source = source
	return b
}

// WithCompleter sets the LLM client
func (b *Builder) WithCompleter(completer llm.Completer) *Builder {
	b.completer = completer
	return b
}

// WithLedger sets the run ledger
func (b *Builder) WithLedger(ledger RunRecorder) *Builder {
	b.ledger = ledger
	return b
}

// WithClock sets the clock used for "today"
func (b *Builder) WithClock(now Clock) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// WithLogger sets the logger
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// Build constructs a fully configured Runner
func (b *Builder) Build() (*Runner, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if b.completer == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if b.source == nil {
		return nil, fmt.Errorf("mail source is required")
	}

	log := logger.Or(b.log)
	cfg := b.cfg
	model := cfg.AI.Gemini.Model

	layout := store.NewLayout(cfg.App.DataDir)
	documents := store.NewDocumentStore(layout)
	batches := store.NewBatchStore(layout)
	reports := store.NewReportStore(layout)

	tally := &cost.Tally{}
	completer := func(stage store.RunKind) llm.Completer {
		return llm.NewLoggedCompleter(b.completer, string(stage), log).WithTally(tally)
	}

	summarizer := summarize.NewSummarizer(
		completer(store.RunDaily),
		summarize.Options{Model: model, MaxContentChars: cfg.Pipeline.MaxContentChars},
		log,
	)

	daily := NewDaily(
		b.source,
		extract.NewDefault(),
		policy.New(cfg.Senders),
		documents,
		summarizer,
		batches,
		DailyConfig{
			Senders:      cfg.Senders,
			Categories:   cfg.Pipeline.Categories,
			LookbackDays: cfg.Pipeline.LookbackDays,
			UnreadOnly:   cfg.Pipeline.UnreadOnly,
			MaxResults:   cfg.Pipeline.MaxResults,
		},
		b.now,
		log,
	)

	analyzer := trends.NewAnalyzer(
		completer(store.RunTrends),
		batches, reports,
		trends.Options{Model: model, Now: b.now},
		log,
	)

	synthesizer := weekly.NewSynthesizer(
		completer(store.RunWeekly),
		batches, reports,
		weekly.Options{Model: model, EndOfWeek: cfg.Weekly.Weekday(), Now: b.now},
		log,
	)

	processor := NewProcessor(
		documents,
		store.NewProcessedStore(layout),
		summarize.NewRewriter(completer(store.RunProcess), model),
		log,
	)

	return &Runner{
		layout:        layout,
		daily:         daily,
		trends:        analyzer,
		weekly:        synthesizer,
		processor:     processor,
		ledger:        b.ledger,
		usage:         tally,
		trendsOnCycle: cfg.Pipeline.TrendsOnCycle,
		now:           b.now,
		log:           log,
	}, nil
}
