package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"wisgen/internal/config"
	"wisgen/internal/core"
	"wisgen/internal/store"
	"wisgen/test/mocks"
)

type recordedRuns struct {
	mu   sync.Mutex
	runs []store.Run
}

func (r *recordedRuns) Record(ctx context.Context, run store.Run) (store.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return run, nil
}

func (r *recordedRuns) kinds() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	for _, run := range r.runs {
		kinds = append(kinds, string(run.Kind)+":"+run.Status)
	}
	return strings.Join(kinds, ",")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App:     config.App{DataDir: t.TempDir()},
		AI:      config.AI{Gemini: config.GeminiConfig{Model: "gemini-test"}},
		Senders: []string{"newsletters@techcrunch.com"},
		Pipeline: config.Pipeline{
			MaxResults:      15,
			Categories:      []string{"primary"},
			LookbackDays:    1,
			UnreadOnly:      true,
			MaxContentChars: 8000,
			TrendsOnCycle:   true,
		},
		Weekly: config.Weekly{EndOfWeek: "friday"},
	}
}

func buildRunner(t *testing.T, cfg *config.Config, source *mocks.MockSource, completer *mocks.MockCompleter, ledger RunRecorder) *Runner {
	t.Helper()
	runner, err := NewBuilder(cfg).
		WithSource(source).
		WithCompleter(completer).
		WithLedger(ledger).
		WithClock(fixedClock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return runner
}

func TestBuilder_RequiresDependencies(t *testing.T) {
	cfg := testConfig(t)
	if _, err := NewBuilder(cfg).WithCompleter(&mocks.MockCompleter{}).Build(); err == nil {
		t.Error("Expected error without a source")
	}
	if _, err := NewBuilder(cfg).WithSource(&mocks.MockSource{}).Build(); err == nil {
		t.Error("Expected error without an LLM client")
	}
	if _, err := NewBuilder(nil).Build(); err == nil {
		t.Error("Expected error without configuration")
	}
}

func TestRunner_RunCycle(t *testing.T) {
	cfg := testConfig(t)
	msg := htmlMessage("m1", "newsletters@techcrunch.com", "Week in AI", "GPUs sold out")
	source := &mocks.MockSource{Messages: map[string]core.RawMessage{"m1": msg}, IDs: []string{"m1"}}
	completer := &mocks.MockCompleter{}
	ledger := &recordedRuns{}

	runner := buildRunner(t, cfg, source, completer, ledger)
	result := runner.RunCycle(context.Background())
	if result.Err != nil {
		t.Fatalf("RunCycle failed: %v", result.Err)
	}
	if result.Daily == nil || len(result.Daily.Insights) != 1 {
		t.Fatalf("Expected one daily entry, got %+v", result.Daily)
	}
	if result.Trend == nil {
		t.Error("Expected a trend report when trends run on the cycle")
	}
	// 2026-10-16 is a Friday, the configured end of week.
	if result.Weekly == nil || result.Weekly.End != "2026-10-16" {
		t.Errorf("Expected a weekly digest, got %+v", result.Weekly)
	}
	if got := ledger.kinds(); got != "daily:ok,trends:ok,weekly:ok" {
		t.Errorf("Unexpected ledger entries %s", got)
	}
	if !strings.Contains(result.Summary(), "daily: 1 entries from 1 candidates") {
		t.Errorf("Unexpected summary %q", result.Summary())
	}
	if result.Stats().Summarized != 1 {
		t.Errorf("Unexpected stats %+v", result.Stats())
	}
	if usage := runner.Usage(); usage.Calls != 3 || usage.InputTokens == 0 {
		t.Errorf("Expected usage of the insight, trend and weekly calls, got %+v", usage)
	}
}

func TestRunner_StageErrorsAreCollected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.TrendsOnCycle = false
	source := &mocks.MockSource{
		ListMessageIDsFunc: func(ctx context.Context, q core.Query) ([]string, error) {
			return nil, errors.New("auth expired")
		},
	}
	ledger := &recordedRuns{}
	runner := buildRunner(t, cfg, source, &mocks.MockCompleter{}, ledger)

	result := runner.RunCycle(context.Background())
	if result.Err == nil || !strings.Contains(result.Err.Error(), "auth expired") {
		t.Fatalf("Expected daily error, got %v", result.Err)
	}
	// The weekly stage still ran; no history means nothing to write.
	if got := ledger.kinds(); got != "daily:failed,weekly:skipped" {
		t.Errorf("Unexpected ledger entries %s", got)
	}
	if ledger.runs[0].Error == "" {
		t.Error("Expected the failure text to be recorded")
	}
}

func TestRunner_Busy(t *testing.T) {
	cfg := testConfig(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	source := &mocks.MockSource{
		ListMessageIDsFunc: func(ctx context.Context, q core.Query) ([]string, error) {
			close(entered)
			<-release
			return nil, nil
		},
	}
	runner := buildRunner(t, cfg, source, &mocks.MockCompleter{}, nil)

	done := make(chan CycleResult)
	go func() { done <- runner.RunCycle(context.Background()) }()
	<-entered

	if !runner.Busy() {
		t.Error("Expected runner to report busy")
	}
	if _, err := runner.RunDaily(context.Background(), nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if _, err := runner.RunTrends(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if res := runner.RunCycle(context.Background()); !errors.Is(res.Err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", res.Err)
	}

	close(release)
	<-done
	if runner.Busy() {
		t.Error("Runner should be idle after the cycle")
	}
}

func TestRunner_RunWeeklyFor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Weekly.EndOfWeek = "sunday"
	runner := buildRunner(t, cfg, &mocks.MockSource{}, &mocks.MockCompleter{}, nil)
	if err := runner.Layout().Ensure(); err != nil {
		t.Fatal(err)
	}

	batch := core.DailyBatch{Date: "2026-10-10", Insights: []core.Insight{{Source: "s", Subject: "x", Date: "d", Insights: "- y"}}}
	if _, err := store.NewBatchStore(runner.Layout()).Write(batch); err != nil {
		t.Fatal(err)
	}

	// Gated: today (Friday) is not Sunday.
	if digest, err := runner.RunWeekly(context.Background(), nil); err != nil || digest != nil {
		t.Errorf("Expected gated weekly run, got %+v, %v", digest, err)
	}

	end := time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)
	digest, err := runner.RunWeekly(context.Background(), &end)
	if err != nil || digest == nil {
		t.Fatalf("Expected digest for explicit date, got %+v, %v", digest, err)
	}
	if digest.Start != "2026-10-05" || digest.End != "2026-10-11" {
		t.Errorf("Unexpected window %s..%s", digest.Start, digest.End)
	}
}

func TestRunner_RunProcess(t *testing.T) {
	cfg := testConfig(t)
	ledger := &recordedRuns{}
	completer := &mocks.MockCompleter{
		CompleteFunc: func(ctx context.Context, prompt, model string) (string, error) {
			return "```html\n<h1>TL;DR</h1>\n```", nil
		},
	}
	runner := buildRunner(t, cfg, &mocks.MockSource{}, completer, ledger)
	layout := runner.Layout()
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}

	docs := store.NewDocumentStore(layout)
	htmlDoc := core.NormalizedDocument{Format: core.FormatHTML, Text: "<p>Ad</p><p>News</p>", Subject: "Week", Sender: "s", Date: "Fri, 16 Oct 2026 05:00:00 +0000"}
	plainDoc := core.NormalizedDocument{Format: core.FormatPlain, Text: "plain", Subject: "Plain", Sender: "s", Date: "Fri, 16 Oct 2026 05:00:00 +0000"}
	for _, d := range []core.NormalizedDocument{htmlDoc, plainDoc} {
		if _, err := docs.Save(d); err != nil {
			t.Fatal(err)
		}
	}

	result, err := runner.RunProcess(context.Background())
	if err != nil {
		t.Fatalf("RunProcess failed: %v", err)
	}
	if len(result.Processed) != 1 || result.Failed != 0 {
		t.Fatalf("Expected one processed file, got %+v", result)
	}

	processed := store.NewProcessedStore(layout)
	if !processed.Exists(store.FileName(htmlDoc)) {
		t.Error("Expected processed file for the html newsletter")
	}

	// Second pass skips what is already processed.
	result, err = runner.RunProcess(context.Background())
	if err != nil || result.Skipped != 1 || len(result.Processed) != 0 {
		t.Errorf("Expected skip on second pass, got %+v, %v", result, err)
	}
	if completer.Calls() != 1 {
		t.Errorf("Expected a single rewrite call, got %d", completer.Calls())
	}
	if got := ledger.kinds(); got != "process:ok,process:skipped" {
		t.Errorf("Unexpected ledger entries %s", got)
	}
}
