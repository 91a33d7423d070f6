package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	trendPrefix     = "trends_analysis_"
	weeklyPrefix    = "weekly_"
	processedPrefix = "processed_"
)

// Report is a rendered HTML report on disk.
type Report struct {
	Filename string `json:"filename"`
	Content  string `json:"content,omitempty"`
}

// ReportStore persists trend reports and weekly digests.
type ReportStore struct {
	insightsDir string
	weeklyDir   string
}

// NewReportStore returns a report store over the layout's insight directories.
func NewReportStore(layout Layout) *ReportStore {
	return &ReportStore{insightsDir: layout.Insights(), weeklyDir: layout.Weekly()}
}

// WriteTrend writes the trend report for date, replacing any earlier one.
func (s *ReportStore) WriteTrend(date, html string) (string, error) {
	path := filepath.Join(s.insightsDir, trendPrefix+date+".html")
	return path, writeFile(path, []byte(html))
}

// LatestTrend returns the most recent trend report. ok is false when none exists.
func (s *ReportStore) LatestTrend() (Report, bool, error) {
	names, err := listPrefixed(s.insightsDir, trendPrefix)
	if err != nil || len(names) == 0 {
		return Report{}, false, err
	}
	latest := names[len(names)-1]
	content, err := os.ReadFile(filepath.Join(s.insightsDir, latest))
	if err != nil {
		return Report{}, false, fmt.Errorf("failed to read trend report: %w", err)
	}
	return Report{Filename: latest, Content: string(content)}, true, nil
}

// WriteWeekly writes the digest for the window [start, end].
func (s *ReportStore) WriteWeekly(start, end, html string) (string, error) {
	path := filepath.Join(s.weeklyDir, fmt.Sprintf("%s%s_%s.html", weeklyPrefix, start, end))
	return path, writeFile(path, []byte(html))
}

// WeeklyDigests lists the weekly digest files, newest first, without content.
func (s *ReportStore) WeeklyDigests() ([]Report, error) {
	names, err := listPrefixed(s.weeklyDir, weeklyPrefix)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		reports = append(reports, Report{Filename: names[i]})
	}
	return reports, nil
}

// ReadWeekly returns one weekly digest by file name.
func (s *ReportStore) ReadWeekly(name string) (Report, error) {
	path, err := within(s.weeklyDir, name)
	if err != nil {
		return Report{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read weekly digest %s: %w", name, err)
	}
	return Report{Filename: name, Content: string(content)}, nil
}

// ProcessedStore persists rewritten newsletters as processed/processed_<name>.
type ProcessedStore struct {
	dir string
}

// NewProcessedStore returns a processed store over the layout's processed directory.
func NewProcessedStore(layout Layout) *ProcessedStore {
	return &ProcessedStore{dir: layout.Processed()}
}

// Name returns the processed file name of a newsletter file.
func (s *ProcessedStore) Name(original string) string {
	return processedPrefix + original
}

// Exists reports whether original already has a processed version.
func (s *ProcessedStore) Exists(original string) bool {
	_, err := os.Stat(filepath.Join(s.dir, s.Name(original)))
	return err == nil
}

// Write stores the processed version of original.
func (s *ProcessedStore) Write(original, html string) (string, error) {
	path, err := within(s.dir, s.Name(original))
	if err != nil {
		return "", err
	}
	return path, writeFile(path, []byte(html))
}

// listPrefixed returns the .html files in dir starting with prefix, sorted by name.
func listPrefixed(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".html") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
