package handlers

import (
	"context"
	"fmt"
	"wisgen/internal/config"
	"wisgen/internal/llm"
	"wisgen/internal/logger"
	"wisgen/internal/mailsource"
	"wisgen/internal/pipeline"
	"wisgen/internal/store"
)

// session holds what a pipeline command needs; Close releases it.
type session struct {
	cfg    *config.Config
	runner *pipeline.Runner
	ledger *store.Ledger
}

func (s *session) Close() {
	if s.runner != nil {
		if usage := s.runner.Usage(); usage.Calls > 0 {
			logger.Info("Estimated LLM usage",
				"calls", usage.Calls,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens,
				"est_cost_usd", fmt.Sprintf("%.4f", usage.Cost),
			)
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			logger.Warn("Failed to close run ledger", "error", err)
		}
	}
}

// openSession opens the mail source, the Gemini client and the run ledger,
// and wires them into a runner.
func openSession(ctx context.Context) (*session, error) {
	cfg := config.Get()
	log := logger.Get()

	layout := store.NewLayout(cfg.App.DataDir)
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	source, err := mailsource.Open(ctx, cfg.Source, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", cfg.Source.Kind, err)
	}

	client, err := llm.NewClient(ctx, llm.Options{
		APIKey:            cfg.AI.Gemini.APIKey,
		Model:             cfg.AI.Gemini.Model,
		Timeout:           cfg.GeminiTimeout(),
		LanguageDirective: cfg.AI.Gemini.LanguageDirective,
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	if s.ledger, err = store.OpenLedger(layout); err != nil {
		// Runs proceed without a ledger.
		log.Warn("Run ledger unavailable", "error", err)
	}

	builder := pipeline.NewBuilder(cfg).
		WithSource(source).
		WithCompleter(client).
		WithLogger(log)
	if s.ledger != nil {
		builder = builder.WithLedger(s.ledger)
	}

	if s.runner, err = builder.Build(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
