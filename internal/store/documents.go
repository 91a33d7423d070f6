package store

import (
	"bufio"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
	"wisgen/internal/core"
)

const (
	maxSubjectRunes = 120
	// File names are limited to 255 bytes on common filesystems; the date
	// prefix and extension take the rest.
	maxSubjectBytes = 200
)

var (
	htmlFromPattern  = regexp.MustCompile(`^<!--\s*From:\s*(.*?)\s*-->\s*$`)
	htmlDatePattern  = regexp.MustCompile(`^<!--\s*Date:\s*(.*?)\s*-->\s*$`)
	plainFromPattern = regexp.MustCompile(`^###\s*From:\s*(.*?)\s*$`)
	plainDatePattern = regexp.MustCompile(`^###\s*Date:\s*(.*?)\s*$`)
	datePrefix       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[^_]*_`)
)

// DocumentInfo describes one saved newsletter.
type DocumentInfo struct {
	Filename          string `json:"filename"`
	Source            string `json:"source"`
	Subject           string `json:"subject"`
	Date              string `json:"date"`
	ProcessedFilename string `json:"processedFilename,omitempty"`
}

// DocumentStore persists normalized documents, one file per accepted message.
type DocumentStore struct {
	dir          string
	processedDir string
}

// NewDocumentStore returns a document store over the layout's newsletter directory.
func NewDocumentStore(layout Layout) *DocumentStore {
	return &DocumentStore{dir: layout.Newsletters(), processedDir: layout.Processed()}
}

// Dir returns the directory documents are written to.
func (s *DocumentStore) Dir() string {
	return s.dir
}

// FileName returns the file name a document is saved under.
func FileName(doc core.NormalizedDocument) string {
	subject := firstBytes(string(firstRunes([]rune(sanitize(doc.Subject)), maxSubjectRunes)), maxSubjectBytes)

	ext := ".md"
	if doc.Format == core.FormatHTML {
		ext = ".html"
	}
	return datePart(doc.Date) + "_" + subject + ext
}

func datePart(date string) string {
	return sanitize(strings.ReplaceAll(string(firstRunes([]rune(date), 16)), ":", "-"))
}

// Save writes doc with a leading metadata block and returns its path.
// An existing file with the same name is overwritten.
func (s *DocumentStore) Save(doc core.NormalizedDocument) (string, error) {
	path := filepath.Join(s.dir, FileName(doc))

	var b strings.Builder
	if doc.Format == core.FormatHTML {
		fmt.Fprintf(&b, "<!-- From: %s -->\n<!-- Date: %s -->\n", doc.Sender, doc.Date)
	} else {
		fmt.Fprintf(&b, "### From: %s\n### Date: %s\n\n", doc.Sender, doc.Date)
	}
	b.WriteString(doc.Text)

	if err := writeFile(path, []byte(b.String())); err != nil {
		return "", err
	}
	return path, nil
}

// List returns every saved document, newest first.
func (s *DocumentStore) List() ([]DocumentInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read newsletters directory: %w", err)
	}

	processed := s.processedNames()
	var docs []DocumentInfo
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if entry.IsDir() || (ext != ".html" && ext != ".md") {
			continue
		}
		source, date := readMetadata(filepath.Join(s.dir, name))
		docs = append(docs, DocumentInfo{
			Filename:          name,
			Source:            displaySource(source),
			Subject:           subjectFromName(name, date),
			Date:              date,
			ProcessedFilename: processed[name],
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		ti, tj := parseDate(docs[i].Date), parseDate(docs[j].Date)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return docs[i].Filename > docs[j].Filename
	})
	return docs, nil
}

// Read returns the content of a saved document. Names carrying the processed
// prefix are read from the processed directory.
func (s *DocumentStore) Read(name string) (string, error) {
	dir := s.dir
	if strings.HasPrefix(name, processedPrefix) {
		dir = s.processedDir
	}
	path, err := within(dir, name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", name, err)
	}
	return string(content), nil
}

func (s *DocumentStore) processedNames() map[string]string {
	names := make(map[string]string)
	entries, err := os.ReadDir(s.processedDir)
	if err != nil {
		return names
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, processedPrefix) && strings.HasSuffix(name, ".html") {
			names[strings.TrimPrefix(name, processedPrefix)] = name
		}
	}
	return names
}

// readMetadata parses the leading From/Date block of a saved document.
func readMetadata(path string) (source, date string) {
	source, date = "Unknown Source", "Unknown Date"

	f, err := os.Open(path)
	if err != nil {
		return source, date
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 3 && scanner.Scan(); i++ {
		line := scanner.Text()
		if m := htmlFromPattern.FindStringSubmatch(line); m != nil {
			source = m[1]
		} else if m := plainFromPattern.FindStringSubmatch(line); m != nil {
			source = m[1]
		} else if m := htmlDatePattern.FindStringSubmatch(line); m != nil {
			date = m[1]
		} else if m := plainDatePattern.FindStringSubmatch(line); m != nil {
			date = m[1]
		}
	}
	return source, date
}

// displaySource drops the address part of "Name <addr>".
func displaySource(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		return strings.TrimSpace(from[:i])
	}
	return from
}

// subjectFromName recovers the subject from a file name written by Save,
// using the date of the metadata block to find the prefix.
func subjectFromName(name, date string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if prefix := datePart(date) + "_"; strings.HasPrefix(base, prefix) {
		base = strings.TrimPrefix(base, prefix)
	} else {
		base = datePrefix.ReplaceAllString(base, "")
	}
	return strings.ReplaceAll(base, "_", " ")
}

func parseDate(value string) time.Time {
	if t, err := mail.ParseDate(value); err == nil {
		return t
	}
	return time.Time{}
}

// sanitize makes s safe to use as part of a file name.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '/':
			b.WriteRune('-')
		case strings.ContainsRune(`\:*?"<>|`, r), unicode.IsControl(r), r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// firstBytes cuts s to at most n bytes without splitting a rune.
func firstBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func firstRunes(r []rune, n int) []rune {
	if len(r) > n {
		return r[:n]
	}
	return r
}
