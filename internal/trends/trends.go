package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/llm"
	"wisgen/internal/logger"
	"wisgen/internal/render"
	"wisgen/internal/store"
	"wisgen/internal/summarize"
)

// TitlePrefix precedes the date in the report title.
const TitlePrefix = "Newsletter Trends Analysis: "

// SourceCount is the number of entries one sender contributed.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Report describes a written trend report.
type Report struct {
	Date    string              `json:"date"`
	Path    string              `json:"path"`
	Entries int                 `json:"entries"` // Entries sent to the model
	Omitted int                 `json:"omitted"` // Failed entries left out
	Sources []SourceCount       `json:"sources"`
	Skipped []store.SkippedFile `json:"-"`
}

// Options configures an Analyzer.
type Options struct {
	Model string           // Empty selects the client's default
	Now   func() time.Time // Clock; nil means time.Now
}

// Analyzer produces a trend report over the full insight history.
type Analyzer struct {
	llmClient llm.Completer
	batches   *store.BatchStore
	reports   *store.ReportStore
	options   Options
	log       *slog.Logger
}

// NewAnalyzer creates a new trend analyzer.
func NewAnalyzer(llmClient llm.Completer, batches *store.BatchStore, reports *store.ReportStore, options Options, log *slog.Logger) *Analyzer {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Analyzer{
		llmClient: llmClient,
		batches:   batches,
		reports:   reports,
		options:   options,
		log:       logger.Or(log),
	}
}

// Analyze reads every daily batch and writes today's trend report.
// It returns nil without error when there is nothing to analyze.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	entries, skipped, err := a.batches.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load insight history: %w", err)
	}
	for _, s := range skipped {
		a.log.Warn("Skipping unreadable insight file", "date", s.Date, "error", s.Err)
	}

	usable, omitted := core.WithoutFailures(entries)
	if len(usable) == 0 {
		a.log.Info("No insights available for analysis", "omitted", omitted)
		return nil, nil
	}

	payload, err := json.MarshalIndent(usable, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode insights: %w", err)
	}

	date := core.Day(a.options.Now())
	a.log.Info("Analyzing insight trends", "entries", len(usable), "date", date)

	reply, err := a.llmClient.Complete(ctx, summarize.BuildTrendsPrompt(string(payload)), a.options.Model)
	if err != nil {
		return nil, fmt.Errorf("trend analysis failed: %w", err)
	}

	page, err := render.Page(TitlePrefix+date, render.StripCodeFence(reply))
	if err != nil {
		return nil, err
	}
	path, err := a.reports.WriteTrend(date, page)
	if err != nil {
		return nil, err
	}

	a.log.Info("Insights analysis saved", "path", path)
	return &Report{
		Date:    date,
		Path:    path,
		Entries: len(usable),
		Omitted: omitted,
		Sources: countSources(usable),
		Skipped: skipped,
	}, nil
}

// countSources tallies entries per sender, most frequent first.
func countSources(entries []core.Insight) []SourceCount {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Source]++
	}
	result := make([]SourceCount, 0, len(counts))
	for source, count := range counts {
		result = append(result, SourceCount{Source: source, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Source < result[j].Source
	})
	return result
}
