package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/extract"
	"wisgen/internal/logger"
)

// DailyConfig holds the query settings of the daily stage
type DailyConfig struct {
	Senders      []string
	Categories   []string
	LookbackDays int
	UnreadOnly   bool
	MaxResults   int
}

// DailyResult contains the output of one daily run
type DailyResult struct {
	Date     string
	Path     string // Empty when no batch was written
	Insights []core.Insight
	Stats    core.RunStats
}

// Daily runs the per-message pipeline and writes the day's insight batch
type Daily struct {
	source      MessageSource
	extractor   DocumentExtractor
	policy      SenderPolicy
	documents   DocumentSaver
	synthesizer InsightSynthesizer
	batches     BatchWriter
	config      DailyConfig
	now         Clock
	log         *slog.Logger
}

// NewDaily creates a daily aggregator with all dependencies
func NewDaily(
	source MessageSource,
	extractor DocumentExtractor,
	policy SenderPolicy,
	documents DocumentSaver,
	synthesizer InsightSynthesizer,
	batches BatchWriter,
	config DailyConfig,
	now Clock,
	log *slog.Logger,
) *Daily {
	if now == nil {
		now = time.Now
	}
	return &Daily{
		source:      source,
		extractor:   extractor,
		policy:      policy,
		documents:   documents,
		synthesizer: synthesizer,
		batches:     batches,
		config:      config,
		now:         now,
		log:         logger.Or(log),
	}
}

// Query returns the source query for a run on today.
func (d *Daily) Query(today time.Time) core.Query {
	return core.Query{
		Senders:    d.config.Senders,
		Categories: d.config.Categories,
		After:      today.AddDate(0, 0, -d.config.LookbackDays),
		UnreadOnly: d.config.UnreadOnly,
		MaxResults: d.config.MaxResults,
	}
}

// Run processes the given message ids, or the ids listed by the source when
// ids is empty, and replaces today's batch with the result. Per-message
// failures are counted and never stop the run.
func (d *Daily) Run(ctx context.Context, ids []string) (*DailyResult, error) {
	today := d.now()
	result := &DailyResult{Date: core.Day(today)}

	if len(ids) == 0 {
		query := d.Query(today)
		d.log.Info("Listing candidate messages", "query", query.String(), "max_results", query.MaxResults)
		listed, err := d.source.ListMessageIDs(ctx, query)
		if err != nil {
			return result, fmt.Errorf("failed to list messages: %w", err)
		}
		ids = listed
	}
	result.Stats.Candidates = len(ids)

	var cancelled error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		if entry, ok := d.processMessage(ctx, id, &result.Stats); ok {
			result.Insights = append(result.Insights, entry)
		}
	}
	if cancelled == nil {
		cancelled = ctx.Err()
	}
	// A cancelled run keeps the batch already on disk.
	if cancelled != nil {
		d.log.Warn("Daily run cancelled, batch not written", "date", result.Date, "processed", len(result.Insights))
		return result, cancelled
	}

	if len(result.Insights) == 0 {
		d.log.Info("No newsletters found to analyze", "date", result.Date, "candidates", result.Stats.Candidates)
		return result, nil
	}

	path, err := d.batches.Write(core.DailyBatch{Date: result.Date, Insights: result.Insights})
	if err != nil {
		return result, fmt.Errorf("failed to write daily insights: %w", err)
	}
	result.Path = path

	d.log.Info("Daily insights saved",
		"path", path,
		"entries", len(result.Insights),
		"rejected", result.Stats.Rejected,
		"dropped", result.Stats.Dropped,
		"synthesis_failures", result.Stats.SynthesisFailure,
	)
	return result, nil
}

func (d *Daily) processMessage(ctx context.Context, id string, stats *core.RunStats) (core.Insight, bool) {
	msg, err := d.source.FetchMessage(ctx, id)
	if err != nil {
		stats.FetchFailures++
		d.log.Warn("Failed to fetch message", "id", id, "error", err)
		return core.Insight{}, false
	}

	doc, ok, err := d.extractor.Extract(msg)
	if err != nil {
		if errors.Is(err, extract.ErrDecode) {
			stats.DecodeFailures++
			d.log.Warn("Failed to decode message", "id", id, "error", err)
		} else {
			stats.Dropped++
			d.log.Warn("Failed to extract message", "id", id, "error", err)
		}
		return core.Insight{}, false
	}
	if !ok {
		stats.Dropped++
		d.log.Info("No usable content in message", "id", id, "subject", msg.Subject())
		return core.Insight{}, false
	}

	if !d.policy.Accept(doc.Sender) {
		stats.Rejected++
		d.log.Debug("Sender not in allow-list", "id", id, "sender", doc.Sender)
		return core.Insight{}, false
	}

	if path, err := d.documents.Save(doc); err != nil {
		d.log.Warn("Failed to save newsletter", "id", id, "error", err)
	} else {
		stats.Saved++
		d.log.Info("Saved newsletter", "path", path)
	}

	res := d.synthesizer.Summarize(ctx, doc)
	if res.OK() {
		stats.Summarized++
	} else {
		stats.SynthesisFailure++
		d.log.Warn("Insight generation failed", "id", id, "subject", doc.Subject, "error", res.Err)
	}
	return res.Insight(doc), true
}
