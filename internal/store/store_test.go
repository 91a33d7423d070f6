package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
	"wisgen/internal/core"
)

func newLayout(t *testing.T) Layout {
	t.Helper()
	layout := NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	return layout
}

func TestLayoutEnsure(t *testing.T) {
	layout := newLayout(t)
	for _, dir := range []string{layout.Newsletters(), layout.Processed(), layout.Insights(), layout.Daily(), layout.Weekly()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("Expected directory %s to exist", dir)
		}
	}
	// Idempotent.
	if err := layout.Ensure(); err != nil {
		t.Errorf("Second Ensure failed: %v", err)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		doc  core.NormalizedDocument
		want string
	}{
		{
			name: "html",
			doc:  core.NormalizedDocument{Format: core.FormatHTML, Date: "2026-10-16T08:00:00Z", Subject: "Week in AI"},
			want: "2026-10-16T08-00_Week_in_AI.html",
		},
		{
			name: "plain with hostile characters",
			doc:  core.NormalizedDocument{Format: core.FormatPlain, Date: "Fri, 16 Oct 2026 08:00:00 +0000", Subject: `AI/ML: "What's next?" <3`},
			want: "Fri,_16_Oct_2026_AI-ML_What's_next_3.md",
		},
		{
			name: "short date",
			doc:  core.NormalizedDocument{Format: core.FormatPlain, Date: "Unknown", Subject: "No Subject"},
			want: "Unknown_No_Subject.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.doc); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileName_CapsSubject(t *testing.T) {
	tests := []struct {
		name      string
		subject   string
		wantRunes int
	}{
		{"ascii capped by runes", strings.Repeat("a", 300), maxSubjectRunes},
		{"two byte runes capped by bytes", strings.Repeat("ü", 300), maxSubjectBytes / 2},
		{"cjk capped by bytes", strings.Repeat("新闻", 50), maxSubjectBytes / 3},
		{"emoji capped by bytes", strings.Repeat("📰", 100), maxSubjectBytes / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := core.NormalizedDocument{Format: core.FormatHTML, Date: "Unknown", Subject: tt.subject}
			name := FileName(doc)
			subject := strings.TrimSuffix(strings.TrimPrefix(name, "Unknown_"), ".html")
			if n := len([]rune(subject)); n != tt.wantRunes {
				t.Errorf("Expected %d runes, got %d", tt.wantRunes, n)
			}
			if len(subject) > maxSubjectBytes || !utf8.ValidString(subject) {
				t.Errorf("Subject is %d bytes or split a rune: %q", len(subject), subject)
			}
		})
	}
}

func TestDocumentStore_SaveLongMultibyteSubject(t *testing.T) {
	docs := NewDocumentStore(newLayout(t))
	doc := core.NormalizedDocument{
		Format:  core.FormatHTML,
		Text:    "<p>今日新闻</p>",
		Subject: strings.Repeat("新闻", 50),
		Sender:  "news@example.cn",
		Date:    "Fri, 16 Oct 2026 09:30:00 +0800",
	}
	path, err := docs.Save(doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if n := len(filepath.Base(path)); n > 255 {
		t.Errorf("File name is %d bytes", n)
	}
}

func TestDocumentStore_SaveListRead(t *testing.T) {
	layout := newLayout(t)
	docs := NewDocumentStore(layout)

	older := core.NormalizedDocument{
		Format:  core.FormatHTML,
		Text:    "<p>Older</p>",
		Subject: "Morning Brew",
		Sender:  "Morning Brew <crew@morningbrew.com>",
		Date:    "Thu, 15 Oct 2026 07:00:00 +0000",
	}
	newer := core.NormalizedDocument{
		Format:  core.FormatPlain,
		Text:    "Plain body",
		Subject: "Deep Learning Weekly",
		Sender:  "deeplearningweekly@substack.com",
		Date:    "Fri, 16 Oct 2026 09:30:00 +0000",
	}

	path, err := docs.Save(older)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(content), "<!-- From: Morning Brew <crew@morningbrew.com> -->\n<!-- Date: Thu, 15 Oct 2026 07:00:00 +0000 -->\n<p>Older</p>") {
		t.Errorf("Unexpected html file content:\n%s", content)
	}

	path, err = docs.Save(newer)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "### From: deeplearningweekly@substack.com\n### Date: Fri, 16 Oct 2026 09:30:00 +0000\n\nPlain body" {
		t.Errorf("Unexpected plain file content:\n%s", content)
	}

	// Overwrite keeps a single file.
	older.Text = "<p>Replaced</p>"
	if _, err := docs.Save(older); err != nil {
		t.Fatalf("Save overwrite failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(layout.Processed(), "processed_"+FileName(older)), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	list, err := docs.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(list))
	}
	if list[0].Subject != "Deep Learning Weekly" || list[1].Subject != "Morning Brew" {
		t.Errorf("Expected newest first, got %+v", list)
	}
	if list[1].Source != "Morning Brew" {
		t.Errorf("Expected display name without address, got %q", list[1].Source)
	}
	if list[1].Date != older.Date {
		t.Errorf("Expected date from metadata, got %q", list[1].Date)
	}
	if list[1].ProcessedFilename != "processed_"+FileName(older) {
		t.Errorf("Expected processed file to be linked, got %q", list[1].ProcessedFilename)
	}
	if list[0].ProcessedFilename != "" {
		t.Errorf("Expected no processed file, got %q", list[0].ProcessedFilename)
	}

	got, err := docs.Read(list[1].Filename)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(got, "Replaced") {
		t.Errorf("Expected overwritten content, got %q", got)
	}
}

func TestDocumentStore_ReadRejectsTraversal(t *testing.T) {
	docs := NewDocumentStore(newLayout(t))
	for _, name := range []string{"../wisgen.db", "a/b.html", "..", ""} {
		if _, err := docs.Read(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Read(%q) should fail with ErrInvalidName, got %v", name, err)
		}
	}
}

func TestDocumentStore_ReadProcessed(t *testing.T) {
	layout := newLayout(t)
	docs := NewDocumentStore(layout)
	processed := NewProcessedStore(layout)

	if _, err := processed.Write("2026-10-16_x.html", "<p>clean</p>"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := docs.Read("processed_2026-10-16_x.html")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != "<p>clean</p>" {
		t.Errorf("Expected processed content, got %q", got)
	}
}

func TestBatchStore(t *testing.T) {
	layout := newLayout(t)
	batches := NewBatchStore(layout)

	first := core.DailyBatch{Date: "2026-10-15", Insights: []core.Insight{{Source: "a", Subject: "s1", Date: "d1", Insights: "- one"}}}
	second := core.DailyBatch{Date: "2026-10-16", Insights: []core.Insight{
		{Source: "b", Subject: "s2", Date: "d2", Insights: "- two"},
		{Source: "c", Subject: "s3", Date: "d3", Insights: "Error generating content: boom", Failed: true},
	}}
	for _, b := range []core.DailyBatch{second, first} {
		if _, err := batches.Write(b); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	raw, _ := os.ReadFile(batches.Path(first.Date))
	if strings.Contains(string(raw), "failed") {
		t.Errorf("Successful entries should not carry the failed flag: %s", raw)
	}
	if !strings.HasPrefix(string(raw), "[\n  {") {
		t.Errorf("Expected indented JSON array, got %s", raw)
	}

	// A rerun replaces the file wholesale.
	first.Insights = []core.Insight{{Source: "z", Subject: "rerun", Date: "d", Insights: "- again"}}
	if _, err := batches.Write(first); err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	loaded, err := batches.Load(first.Date)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Insights) != 1 || loaded.Insights[0].Subject != "rerun" {
		t.Errorf("Expected replaced batch, got %+v", loaded.Insights)
	}

	if err := os.WriteFile(batches.Path("2026-10-17"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	dates, err := batches.Dates()
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	if strings.Join(dates, ",") != "2026-10-15,2026-10-16,2026-10-17" {
		t.Errorf("Unexpected dates %v", dates)
	}

	all, skipped, err := batches.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(all) != 3 || all[0].Subject != "rerun" || all[2].Subject != "s3" {
		t.Errorf("Unexpected entries %+v", all)
	}
	if len(skipped) != 1 || skipped[0].Date != "2026-10-17" {
		t.Errorf("Expected corrupt file to be skipped, got %+v", skipped)
	}

	some, skipped, _ := batches.LoadDates([]string{"2026-10-10", "2026-10-16"})
	if len(some) != 2 || len(skipped) != 0 {
		t.Errorf("Missing dates should be ignored silently, got %d entries, %d skipped", len(some), len(skipped))
	}
}

func TestReportStore(t *testing.T) {
	layout := newLayout(t)
	reports := NewReportStore(layout)

	if _, ok, err := reports.LatestTrend(); ok || err != nil {
		t.Fatalf("Expected no trend report, got ok=%v err=%v", ok, err)
	}

	for _, date := range []string{"2026-10-14", "2026-10-16", "2026-10-15"} {
		if _, err := reports.WriteTrend(date, "<html>"+date+"</html>"); err != nil {
			t.Fatalf("WriteTrend failed: %v", err)
		}
	}
	latest, ok, err := reports.LatestTrend()
	if err != nil || !ok {
		t.Fatalf("LatestTrend failed: ok=%v err=%v", ok, err)
	}
	if latest.Filename != "trends_analysis_2026-10-16.html" || latest.Content != "<html>2026-10-16</html>" {
		t.Errorf("Unexpected latest report %+v", latest)
	}

	path, err := reports.WriteWeekly("2026-10-12", "2026-10-18", "<html>week</html>")
	if err != nil {
		t.Fatalf("WriteWeekly failed: %v", err)
	}
	if filepath.Base(path) != "weekly_2026-10-12_2026-10-18.html" {
		t.Errorf("Unexpected weekly path %s", path)
	}
	if _, err := reports.WriteWeekly("2026-10-05", "2026-10-11", "<html>prev</html>"); err != nil {
		t.Fatal(err)
	}
	digests, err := reports.WeeklyDigests()
	if err != nil {
		t.Fatalf("WeeklyDigests failed: %v", err)
	}
	if len(digests) != 2 || digests[0].Filename != "weekly_2026-10-12_2026-10-18.html" {
		t.Errorf("Expected newest digest first, got %+v", digests)
	}
	digest, err := reports.ReadWeekly(digests[1].Filename)
	if err != nil || digest.Content != "<html>prev</html>" {
		t.Errorf("ReadWeekly = %+v, %v", digest, err)
	}
}

func TestProcessedStore(t *testing.T) {
	processed := NewProcessedStore(newLayout(t))
	name := "2026-10-16_Week_in_AI.html"
	if processed.Exists(name) {
		t.Fatal("Expected no processed file yet")
	}
	path, err := processed.Write(name, "<p>clean</p>")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "processed_"+name {
		t.Errorf("Unexpected processed path %s", path)
	}
	if !processed.Exists(name) {
		t.Error("Expected processed file to exist")
	}
}

func TestLedger(t *testing.T) {
	layout := newLayout(t)
	ledger, err := OpenLedger(layout)
	if err != nil {
		t.Fatalf("OpenLedger failed: %v", err)
	}
	defer ledger.Close()

	ctx := context.Background()
	base := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)

	daily, err := ledger.Record(ctx, Run{
		Kind:       RunDaily,
		StartedAt:  base,
		FinishedAt: base.Add(90 * time.Second),
		Status:     StatusOK,
		Output:     "data/insights/daily/2026-10-16.json",
		RunStats:   core.RunStats{Candidates: 5, Rejected: 1, Saved: 4, Summarized: 4},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if daily.ID == "" {
		t.Error("Expected an ID to be assigned")
	}

	if _, err := ledger.Record(ctx, Run{
		Kind:       RunTrends,
		StartedAt:  base.Add(time.Hour),
		FinishedAt: base.Add(time.Hour + time.Second),
		Status:     StatusFailed,
		Error:      "llm unavailable",
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	runs, err := ledger.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].Kind != RunTrends || runs[1].Kind != RunDaily {
		t.Errorf("Expected newest first, got %s then %s", runs[0].Kind, runs[1].Kind)
	}
	if runs[1].Saved != 4 || runs[1].Rejected != 1 || runs[1].Duration() != 90*time.Second {
		t.Errorf("Stats not round-tripped: %+v", runs[1])
	}
	if runs[0].Error != "llm unavailable" {
		t.Errorf("Expected error text, got %q", runs[0].Error)
	}

	stats, err := ledger.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRuns != 2 || stats.FailedRuns != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	if _, err := os.Stat(ledger.Path()); err != nil {
		t.Errorf("Expected database file: %v", err)
	}
}
