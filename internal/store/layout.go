package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Layout describes the on-disk tree under the data directory:
//
//	<root>/newsletters         one file per accepted message
//	<root>/processed           rewritten newsletters
//	<root>/insights            trend reports
//	<root>/insights/daily      one JSON batch per date
//	<root>/insights/weekly     one digest per completed week
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at dataDir.
func NewLayout(dataDir string) Layout {
	return Layout{Root: dataDir}
}

func (l Layout) Newsletters() string { return filepath.Join(l.Root, "newsletters") }
func (l Layout) Processed() string   { return filepath.Join(l.Root, "processed") }
func (l Layout) Insights() string    { return filepath.Join(l.Root, "insights") }
func (l Layout) Daily() string       { return filepath.Join(l.Root, "insights", "daily") }
func (l Layout) Weekly() string      { return filepath.Join(l.Root, "insights", "weekly") }
func (l Layout) Ledger() string      { return filepath.Join(l.Root, "wisgen.db") }

// Ensure creates every directory of the layout. It is called once at process
// start; no component creates directories as a side effect of being built.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Newsletters(), l.Processed(), l.Insights(), l.Daily(), l.Weekly()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// writeFile creates or overwrites path with content.
func writeFile(path string, content []byte) error {
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// ErrInvalidName is returned for file names that are empty or leave their directory.
var ErrInvalidName = errors.New("invalid file name")

// within joins name onto dir and refuses names that leave dir.
func within(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}
