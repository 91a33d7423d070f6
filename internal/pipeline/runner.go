package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/cost"
	"wisgen/internal/store"
	"wisgen/internal/trends"
	"wisgen/internal/weekly"
)

// ErrBusy is returned when a run is already in progress in this process.
var ErrBusy = errors.New("a pipeline run is already in progress")

// CycleResult contains the output of every stage of one cycle
type CycleResult struct {
	Daily  *DailyResult
	Trend  *trends.Report
	Weekly *weekly.Digest
	Err    error // All stage errors, joined
}

// Runner sequences the stages and records each one in the ledger.
// Runs never overlap inside one process.
type Runner struct {
	mu sync.Mutex

	layout        store.Layout
	daily         *Daily
	trends        TrendAnalyzer
	weekly        WeeklySynthesizer
	processor     *Processor
	ledger        RunRecorder // Optional
	usage         *cost.Tally
	trendsOnCycle bool
	now           Clock
	log           *slog.Logger
}

// Layout returns the storage layout the runner writes to.
func (r *Runner) Layout() store.Layout {
	return r.layout
}

// Usage returns the estimated LLM usage of every run so far.
func (r *Runner) Usage() cost.Usage {
	if r.usage == nil {
		return cost.Usage{}
	}
	return r.usage.Total()
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	if r.mu.TryLock() {
		r.mu.Unlock()
		return false
	}
	return true
}

// RunCycle runs the daily stage, the trend stage when enabled, and the weekly
// stage. A failing stage does not prevent the following ones.
func (r *Runner) RunCycle(ctx context.Context) CycleResult {
	if !r.mu.TryLock() {
		return CycleResult{Err: ErrBusy}
	}
	defer r.mu.Unlock()

	if err := r.layout.Ensure(); err != nil {
		return CycleResult{Err: err}
	}

	var (
		result CycleResult
		errs   []error
		err    error
	)

	if result.Daily, err = r.runDaily(ctx, nil); err != nil {
		r.log.Error("Daily stage failed", "error", err)
		errs = append(errs, err)
	}

	if r.trendsOnCycle {
		if result.Trend, err = r.runTrends(ctx); err != nil {
			r.log.Error("Trend stage failed", "error", err)
			errs = append(errs, err)
		}
	}

	if result.Weekly, err = r.runWeekly(ctx, nil); err != nil {
		r.log.Error("Weekly stage failed", "error", err)
		errs = append(errs, err)
	}

	result.Err = errors.Join(errs...)
	return result
}

// RunDaily runs the daily stage alone.
func (r *Runner) RunDaily(ctx context.Context, ids []string) (*DailyResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()
	return r.runDaily(ctx, ids)
}

// RunTrends runs the trend stage alone.
func (r *Runner) RunTrends(ctx context.Context) (*trends.Report, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()
	return r.runTrends(ctx)
}

// RunWeekly runs the weekly stage alone. A nil end applies the end-of-week
// gate to today; otherwise the window ending on *end is synthesized.
func (r *Runner) RunWeekly(ctx context.Context, end *time.Time) (*weekly.Digest, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()
	return r.runWeekly(ctx, end)
}

// RunProcess rewrites saved newsletters.
func (r *Runner) RunProcess(ctx context.Context) (*ProcessResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	started := r.now()
	result, err := r.processor.Run(ctx)
	run := store.Run{Kind: store.RunProcess}
	output := ""
	if result != nil {
		run.RunStats.Saved = len(result.Processed)
		run.RunStats.Candidates = len(result.Processed) + result.Skipped + result.Failed
		run.RunStats.SynthesisFailure = result.Failed
		if len(result.Processed) > 0 {
			output = r.layout.Processed()
		}
	}
	r.record(ctx, run, started, output, err)
	return result, err
}

func (r *Runner) runDaily(ctx context.Context, ids []string) (*DailyResult, error) {
	started := r.now()
	result, err := r.daily.Run(ctx, ids)

	run := store.Run{Kind: store.RunDaily}
	output := ""
	if result != nil {
		run.RunStats = result.Stats
		output = result.Path
	}
	r.record(ctx, run, started, output, err)
	return result, err
}

func (r *Runner) runTrends(ctx context.Context) (*trends.Report, error) {
	started := r.now()
	report, err := r.trends.Analyze(ctx)

	run := store.Run{Kind: store.RunTrends}
	output := ""
	if report != nil {
		output = report.Path
		run.RunStats.Summarized = report.Entries
	}
	r.record(ctx, run, started, output, err)
	return report, err
}

func (r *Runner) runWeekly(ctx context.Context, end *time.Time) (*weekly.Digest, error) {
	started := r.now()

	var (
		digest *weekly.Digest
		err    error
	)
	if end != nil {
		digest, err = r.weekly.RunFor(ctx, *end)
	} else {
		digest, err = r.weekly.Run(ctx)
	}

	run := store.Run{Kind: store.RunWeekly}
	output := ""
	if digest != nil {
		output = digest.Path
		run.RunStats.Summarized = digest.Entries
	}
	r.record(ctx, run, started, output, err)
	return digest, err
}

// record writes a ledger entry. Ledger failures are logged and never fail a stage.
func (r *Runner) record(ctx context.Context, run store.Run, started time.Time, output string, stageErr error) {
	if r.ledger == nil {
		return
	}
	run.StartedAt = started
	run.FinishedAt = r.now()
	run.Output = output
	switch {
	case stageErr != nil:
		run.Status = store.StatusFailed
		run.Error = stageErr.Error()
	case output == "":
		run.Status = store.StatusSkipped
	default:
		run.Status = store.StatusOK
	}
	// The ledger write must survive a cancelled stage context.
	if _, err := r.ledger.Record(context.WithoutCancel(ctx), run); err != nil {
		r.log.Warn("Failed to record run", "kind", run.Kind, "error", err)
	}
}

// Summary renders a one-line description of a cycle for logs and CLI output.
func (c CycleResult) Summary() string {
	daily := "daily: skipped"
	if c.Daily != nil {
		daily = fmt.Sprintf("daily: %d entries from %d candidates", len(c.Daily.Insights), c.Daily.Stats.Candidates)
	}
	trend := "trends: none"
	if c.Trend != nil {
		trend = "trends: " + c.Trend.Path
	}
	week := "weekly: none"
	if c.Weekly != nil {
		week = "weekly: " + c.Weekly.Path
	}
	return daily + ", " + trend + ", " + week
}

// Stats returns the daily stage stats, zero when the stage did not run.
func (c CycleResult) Stats() core.RunStats {
	if c.Daily == nil {
		return core.RunStats{}
	}
	return c.Daily.Stats
}
