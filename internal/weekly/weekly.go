// Package weekly synthesizes the insights of a trailing seven-day window into
// a single digest, once per week.
package weekly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/llm"
	"wisgen/internal/logger"
	"wisgen/internal/render"
	"wisgen/internal/store"
	"wisgen/internal/summarize"
)

// WindowDays is the length of the digest window, end date included.
const WindowDays = 7

// Digest describes a written weekly digest.
type Digest struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}

// Options configures a Synthesizer.
type Options struct {
	Model     string
	EndOfWeek time.Weekday
	Now       func() time.Time // Clock; nil means time.Now
}

// Synthesizer writes the weekly digest on the configured end-of-week day.
type Synthesizer struct {
	llmClient llm.Completer
	batches   *store.BatchStore
	reports   *store.ReportStore
	options   Options
	log       *slog.Logger
}

// NewSynthesizer creates a new weekly synthesizer.
func NewSynthesizer(llmClient llm.Completer, batches *store.BatchStore, reports *store.ReportStore, options Options, log *slog.Logger) *Synthesizer {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Synthesizer{
		llmClient: llmClient,
		batches:   batches,
		reports:   reports,
		options:   options,
		log:       logger.Or(log),
	}
}

// Window returns the dates of the seven-day window ending on today, oldest first.
func Window(today time.Time) []string {
	dates := make([]string, 0, WindowDays)
	for i := WindowDays - 1; i >= 0; i-- {
		dates = append(dates, core.Day(today.AddDate(0, 0, -i)))
	}
	return dates
}

// Run writes the digest when today is the end of the week. Off days and
// windows without entries return nil without error.
func (s *Synthesizer) Run(ctx context.Context) (*Digest, error) {
	today := s.options.Now()
	if today.Weekday() != s.options.EndOfWeek {
		s.log.Debug("Not the end of the week, skipping weekly digest", "weekday", today.Weekday(), "end_of_week", s.options.EndOfWeek)
		return nil, nil
	}
	return s.RunFor(ctx, today)
}

// RunFor writes the digest for the window ending on end, regardless of weekday.
func (s *Synthesizer) RunFor(ctx context.Context, end time.Time) (*Digest, error) {
	dates := Window(end)
	start, last := dates[0], dates[len(dates)-1]

	entries, skipped, err := s.batches.LoadDates(dates)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly insights: %w", err)
	}
	for _, sk := range skipped {
		s.log.Warn("Skipping unreadable insight file", "date", sk.Date, "error", sk.Err)
	}
	entries, omitted := core.WithoutFailures(entries)
	if len(entries) == 0 {
		s.log.Info("No insights in weekly window", "start", start, "end", last, "omitted", omitted)
		return nil, nil
	}

	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode insights: %w", err)
	}

	s.log.Info("Synthesizing weekly digest", "start", start, "end", last, "entries", len(entries))
	reply, err := s.llmClient.Complete(ctx, summarize.BuildWeeklyPrompt(start, last, string(payload)), s.options.Model)
	if err != nil {
		return nil, fmt.Errorf("weekly synthesis failed: %w", err)
	}

	body := render.MarkdownToHTML(render.StripCodeFence(reply))
	page, err := render.Page(fmt.Sprintf("Weekly Digest: %s to %s", start, last), body)
	if err != nil {
		return nil, err
	}
	path, err := s.reports.WriteWeekly(start, last, page)
	if err != nil {
		return nil, err
	}

	s.log.Info("Weekly digest saved", "path", path)
	return &Digest{Start: start, End: last, Path: path, Entries: len(entries)}, nil
}
