package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/extract"
	"wisgen/internal/policy"
	"wisgen/internal/store"
	"wisgen/internal/summarize"
	"wisgen/test/mocks"
)

var today = time.Date(2026, 10, 16, 6, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return today }

func htmlMessage(id, sender, subject, body string) core.RawMessage {
	return core.RawMessage{
		ID:       id,
		MimeType: "multipart/alternative",
		Headers: []core.Header{
			{Name: "From", Value: sender},
			{Name: "Subject", Value: subject},
			{Name: "Date", Value: "Fri, 16 Oct 2026 05:00:00 +0000"},
		},
		Parts: []core.MessagePart{
			{MimeType: "text/plain", Data: extract.Encode([]byte("plain " + body))},
			{MimeType: "text/html", Data: extract.Encode([]byte("<p>" + body + "</p>"))},
		},
	}
}

type dailyFixture struct {
	layout    store.Layout
	source    *mocks.MockSource
	completer *mocks.MockCompleter
	daily     *Daily
}

func newDailyFixture(t *testing.T, messages ...core.RawMessage) *dailyFixture {
	t.Helper()
	layout := store.NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}

	source := &mocks.MockSource{Messages: map[string]core.RawMessage{}}
	for _, m := range messages {
		source.Messages[m.ID] = m
		source.IDs = append(source.IDs, m.ID)
	}
	completer := &mocks.MockCompleter{}

	daily := NewDaily(
		source,
		extract.NewDefault(),
		policy.New([]string{"newsletters@techcrunch.com", "dailybrief@cfr.org"}),
		store.NewDocumentStore(layout),
		summarize.NewSummarizer(completer, summarize.Options{}, nil),
		store.NewBatchStore(layout),
		DailyConfig{
			Senders:      []string{"newsletters@techcrunch.com", "dailybrief@cfr.org"},
			Categories:   []string{"primary", "updates"},
			LookbackDays: 1,
			UnreadOnly:   true,
			MaxResults:   15,
		},
		fixedClock,
		nil,
	)
	return &dailyFixture{layout: layout, source: source, completer: completer, daily: daily}
}

func TestDaily_Query(t *testing.T) {
	f := newDailyFixture(t)
	q := f.daily.Query(today)
	want := "(from:newsletters@techcrunch.com OR from:dailybrief@cfr.org) (category:primary OR category:updates) after:2026/10/15 is:unread"
	if q.String() != want {
		t.Errorf("Query = %q, want %q", q.String(), want)
	}
	if q.MaxResults != 15 {
		t.Errorf("Expected max results 15, got %d", q.MaxResults)
	}
}

func TestDaily_AcceptsAndRejects(t *testing.T) {
	f := newDailyFixture(t,
		htmlMessage("m1", "TechCrunch <Newsletters@TechCrunch.com>", "Week in AI", "GPUs sold out"),
		htmlMessage("m2", "Promo <deals@shop.example>", "Sale", "50% off"),
		htmlMessage("m3", "CFR <dailybrief@cfr.org>", "Daily Brief", "Sanctions widen"),
	)

	result, err := f.daily.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.source.Queries()) != 1 {
		t.Errorf("Expected the source to be listed once, got %d", len(f.source.Queries()))
	}
	if result.Date != "2026-10-16" {
		t.Errorf("Expected date from the injected clock, got %s", result.Date)
	}
	if len(result.Insights) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(result.Insights))
	}
	for _, entry := range result.Insights {
		if strings.Contains(entry.Source, "shop.example") {
			t.Errorf("Rejected sender produced an entry: %+v", entry)
		}
	}
	stats := result.Stats
	if stats.Candidates != 3 || stats.Rejected != 1 || stats.Saved != 2 || stats.Summarized != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if f.completer.Calls() != 2 {
		t.Errorf("Expected one LLM call per accepted message, got %d", f.completer.Calls())
	}

	// HTML wins over plain even though plain comes first.
	if !strings.Contains(f.completer.Prompts()[0], "GPUs sold out") || strings.Contains(f.completer.Prompts()[0], "plain GPUs") {
		t.Errorf("Expected the html part to be used:\n%s", f.completer.Prompts()[0])
	}

	files, _ := os.ReadDir(f.layout.Newsletters())
	if len(files) != 2 {
		t.Errorf("Expected 2 saved newsletters, got %d", len(files))
	}

	batch, err := store.NewBatchStore(f.layout).Load("2026-10-16")
	if err != nil {
		t.Fatalf("Batch not written: %v", err)
	}
	if len(batch.Insights) != 2 || batch.Insights[0].Subject != "Week in AI" || batch.Insights[1].Subject != "Daily Brief" {
		t.Errorf("Unexpected batch %+v", batch.Insights)
	}
	if result.Path == "" {
		t.Error("Expected batch path in result")
	}
}

func TestDaily_PerMessageFailuresDoNotStopTheRun(t *testing.T) {
	undecodable := htmlMessage("bad", "newsletters@techcrunch.com", "Broken", "x")
	undecodable.Parts = []core.MessagePart{{MimeType: "text/html", Data: "%%%"}}

	empty := htmlMessage("empty", "newsletters@techcrunch.com", "Attachment only", "x")
	empty.Parts = []core.MessagePart{{MimeType: "application/pdf", Data: extract.Encode([]byte("%PDF"))}}

	good := htmlMessage("good", "dailybrief@cfr.org", "Daily Brief", "Talks resume")

	f := newDailyFixture(t, undecodable, empty, good)
	f.source.IDs = append(f.source.IDs, "missing")
	f.completer.CompleteFunc = func(ctx context.Context, prompt, model string) (string, error) {
		return "", errors.New("503 unavailable")
	}

	result, err := f.daily.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	stats := result.Stats
	if stats.Candidates != 4 || stats.DecodeFailures != 1 || stats.Dropped != 1 || stats.FetchFailures != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.SynthesisFailure != 1 || stats.Summarized != 0 {
		t.Errorf("Expected one synthesis failure, got %+v", stats)
	}

	if len(result.Insights) != 1 {
		t.Fatalf("Expected one degraded entry, got %d", len(result.Insights))
	}
	entry := result.Insights[0]
	if !entry.Failed || entry.Insights != "Error generating content: 503 unavailable" {
		t.Errorf("Expected degraded entry, got %+v", entry)
	}
}

func TestDaily_EmptyBatchWritesNothing(t *testing.T) {
	f := newDailyFixture(t, htmlMessage("m1", "Promo <deals@shop.example>", "Sale", "50% off"))

	result, err := f.daily.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Path != "" || len(result.Insights) != 0 {
		t.Errorf("Expected no batch, got %+v", result)
	}
	if _, err := os.Stat(store.NewBatchStore(f.layout).Path("2026-10-16")); !os.IsNotExist(err) {
		t.Error("No batch file should exist for an empty run")
	}
	if f.completer.Calls() != 0 {
		t.Error("Rejected messages must not reach the LLM")
	}
}

func TestDaily_RerunReplacesBatch(t *testing.T) {
	f := newDailyFixture(t,
		htmlMessage("m1", "newsletters@techcrunch.com", "First", "one"),
		htmlMessage("m2", "newsletters@techcrunch.com", "Second", "two"),
	)
	if _, err := f.daily.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	// Explicit ids bypass listing.
	result, err := f.daily.Run(context.Background(), []string{"m2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.source.Queries()) != 1 {
		t.Errorf("Explicit ids should not list the source, got %d listings", len(f.source.Queries()))
	}
	if result.Stats.Candidates != 1 {
		t.Errorf("Expected one candidate, got %d", result.Stats.Candidates)
	}

	batch, _ := store.NewBatchStore(f.layout).Load("2026-10-16")
	if len(batch.Insights) != 1 || batch.Insights[0].Subject != "Second" {
		t.Errorf("Expected the rerun to replace the batch, got %+v", batch.Insights)
	}
}

func TestDaily_ListFailure(t *testing.T) {
	f := newDailyFixture(t)
	f.source.ListMessageIDsFunc = func(ctx context.Context, q core.Query) ([]string, error) {
		return nil, errors.New("connection refused")
	}
	if _, err := f.daily.Run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected listing error, got %v", err)
	}
}

func TestDaily_Cancelled(t *testing.T) {
	f := newDailyFixture(t, htmlMessage("m1", "newsletters@techcrunch.com", "First", "one"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.daily.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(result.Insights) != 0 || f.completer.Calls() != 0 {
		t.Error("No message should be processed after cancellation")
	}
}

func TestDaily_CancelledMidRunKeepsExistingBatch(t *testing.T) {
	f := newDailyFixture(t,
		htmlMessage("m1", "newsletters@techcrunch.com", "First", "one"),
		htmlMessage("m2", "newsletters@techcrunch.com", "Second", "two"),
	)
	if _, err := f.daily.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	path := store.NewBatchStore(f.layout).Path("2026-10-16")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.completer.CompleteFunc = func(ctx context.Context, prompt, model string) (string, error) {
		cancel()
		return "", ctx.Err()
	}

	result, err := f.daily.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.Path != "" {
		t.Errorf("A cancelled run should not report a batch path, got %s", result.Path)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Errorf("Cancelled run replaced the batch:\n%s", after)
	}
}

func TestDaily_SameInputTwiceIsIdentical(t *testing.T) {
	f := newDailyFixture(t,
		htmlMessage("m1", "newsletters@techcrunch.com", "First", "one"),
		htmlMessage("m2", "dailybrief@cfr.org", "Second", "two"),
	)
	path := store.NewBatchStore(f.layout).Path("2026-10-16")

	var contents []string
	for i := 0; i < 2; i++ {
		if _, err := f.daily.Run(context.Background(), []string{"m1", "m2"}); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		contents = append(contents, string(data))
	}

	if contents[0] != contents[1] {
		t.Errorf("Second run changed the batch:\nfirst:\n%s\nsecond:\n%s", contents[0], contents[1])
	}
	batch, err := store.NewBatchStore(f.layout).Load("2026-10-16")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Insights) != 2 {
		t.Errorf("Expected two entries without duplication, got %d", len(batch.Insights))
	}
}

type failingExtractor struct{ err error }

func (e failingExtractor) Extract(msg core.RawMessage) (core.NormalizedDocument, bool, error) {
	return core.NormalizedDocument{}, false, e.err
}

func TestDaily_ExtractionErrorsAreLoggedByKind(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		decode      int
		dropped     int
	}{
		{"decode failure", fmt.Errorf("message m1: %w", extract.ErrDecode), "Failed to decode message", 1, 0},
		{"other failure", errors.New("unsupported layout"), "Failed to extract message", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDailyFixture(t, htmlMessage("m1", "newsletters@techcrunch.com", "First", "one"))
			var logs bytes.Buffer
			daily := NewDaily(
				f.source,
				failingExtractor{err: tt.err},
				policy.New([]string{"newsletters@techcrunch.com"}),
				store.NewDocumentStore(f.layout),
				summarize.NewSummarizer(f.completer, summarize.Options{}, nil),
				store.NewBatchStore(f.layout),
				DailyConfig{},
				fixedClock,
				slog.New(slog.NewTextHandler(&logs, nil)),
			)

			result, err := daily.Run(context.Background(), []string{"m1"})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if result.Stats.DecodeFailures != tt.decode || result.Stats.Dropped != tt.dropped {
				t.Errorf("Unexpected stats %+v", result.Stats)
			}
			if !strings.Contains(logs.String(), tt.wantMessage) {
				t.Errorf("Expected log %q, got:\n%s", tt.wantMessage, logs.String())
			}
		})
	}
}
