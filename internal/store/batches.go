package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"wisgen/internal/core"
)

// BatchStore persists one JSON array of insights per calendar date.
type BatchStore struct {
	dir string
}

// NewBatchStore returns a batch store over the layout's daily directory.
func NewBatchStore(layout Layout) *BatchStore {
	return &BatchStore{dir: layout.Daily()}
}

// Path returns the file of the batch for date.
func (s *BatchStore) Path(date string) string {
	return filepath.Join(s.dir, date+".json")
}

// Write replaces the file for batch.Date with the batch's insights.
func (s *BatchStore) Write(batch core.DailyBatch) (string, error) {
	insights := batch.Insights
	if insights == nil {
		insights = []core.Insight{}
	}
	data, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch %s: %w", batch.Date, err)
	}
	path := s.Path(batch.Date)
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads the batch for date. A missing file yields os.ErrNotExist.
func (s *BatchStore) Load(date string) (core.DailyBatch, error) {
	data, err := os.ReadFile(s.Path(date))
	if err != nil {
		return core.DailyBatch{}, err
	}
	var insights []core.Insight
	if err := json.Unmarshal(data, &insights); err != nil {
		return core.DailyBatch{}, fmt.Errorf("failed to parse batch %s: %w", date, err)
	}
	return core.DailyBatch{Date: date, Insights: insights}, nil
}

// Dates returns the dates that have a batch file, in ascending order.
func (s *BatchStore) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read daily directory: %w", err)
	}
	var dates []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		dates = append(dates, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(dates)
	return dates, nil
}

// SkippedFile names a batch file that could not be read.
type SkippedFile struct {
	Date string
	Err  error
}

// LoadAll concatenates the entries of every readable batch in date order.
// Unreadable files are returned in skipped and do not fail the call.
func (s *BatchStore) LoadAll() ([]core.Insight, []SkippedFile, error) {
	dates, err := s.Dates()
	if err != nil {
		return nil, nil, err
	}
	return s.LoadDates(dates)
}

// LoadDates is LoadAll restricted to dates. Missing files are ignored silently.
func (s *BatchStore) LoadDates(dates []string) ([]core.Insight, []SkippedFile, error) {
	var (
		all     []core.Insight
		skipped []SkippedFile
	)
	for _, date := range dates {
		batch, err := s.Load(date)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			skipped = append(skipped, SkippedFile{Date: date, Err: err})
			continue
		}
		all = append(all, batch.Insights...)
	}
	return all, skipped, nil
}
