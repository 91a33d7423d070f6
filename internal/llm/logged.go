package llm

import (
	"context"
	"log/slog"
	"time"
	"wisgen/internal/cost"
	"wisgen/internal/logger"
)

// LoggedCompleter wraps a Completer and logs every call with its latency and
// estimated cost.
type LoggedCompleter struct {
	next  Completer
	log   *slog.Logger
	stage string
	tally *cost.Tally
}

// NewLoggedCompleter returns next wrapped with call logging. stage labels the
// log records (e.g. "daily", "trends").
func NewLoggedCompleter(next Completer, stage string, log *slog.Logger) *LoggedCompleter {
	return &LoggedCompleter{next: next, log: logger.Or(log), stage: stage, tally: &cost.Tally{}}
}

// WithTally makes the completer add its usage to a shared tally.
func (lc *LoggedCompleter) WithTally(tally *cost.Tally) *LoggedCompleter {
	if tally != nil {
		lc.tally = tally
	}
	return lc
}

// Usage returns the usage accumulated in the completer's tally.
func (lc *LoggedCompleter) Usage() cost.Usage {
	return lc.tally.Total()
}

// Complete forwards to the wrapped Completer.
func (lc *LoggedCompleter) Complete(ctx context.Context, prompt, model string) (string, error) {
	startTime := time.Now()
	result, err := lc.next.Complete(ctx, prompt, model)
	latencyMs := time.Since(startTime).Milliseconds()

	attrs := []any{
		"stage", lc.stage,
		"model", model,
		"prompt_chars", len(prompt),
		"latency_ms", latencyMs,
	}
	if err != nil {
		lc.log.Warn("LLM call failed", append(attrs, "error", err)...)
		return "", err
	}

	usage := cost.Estimate(model, prompt, result)
	total := lc.tally.Add(usage)
	lc.log.Debug("LLM call completed", append(attrs,
		"response_chars", len(result),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"est_cost_usd", usage.Cost,
		"total_cost_usd", total.Cost,
	)...)
	return result, nil
}
