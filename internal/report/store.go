// Package report renders task results into downloadable HTML reports.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/xiaot623/gogo/marketing/internal/domain"
)

var (
	// ErrInvalidFilename means a download name contains path components.
	ErrInvalidFilename = errors.New("invalid report filename")
	// ErrReportNotFound means no report exists under the name.
	ErrReportNotFound = errors.New("report not found")
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// Document is the structured content of a report.
type Document struct {
	Title    string
	Subtitle string
	Summary  []KeyValue
	Sections []Section
	Notice   string
}

// KeyValue is one row of the summary table.
type KeyValue struct {
	Label string
	Value string
}

// Section is one block of a report. Markdown is converted to HTML; raw
// HTML inside it is dropped.
type Section struct {
	Heading  string
	Text     string
	Markdown string
	Bullets  []string
	Table    *Table
}

// Table is a simple grid.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Store writes reports into one directory and serves them by basename.
type Store struct {
	dir string
	md  goldmark.Markdown
	now func() time.Time
}

// NewStore creates the report directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	return &Store{
		dir: dir,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		now: time.Now,
	}, nil
}

// Dir returns the report directory.
func (s *Store) Dir() string {
	return s.dir
}

type sectionView struct {
	Section
	HTML template.HTML
}

type documentView struct {
	*Document
	Task        domain.TaskID
	GeneratedAt string
	Sections    []sectionView
}

// Render writes doc as an HTML file and returns its path. Names carry the
// task, a timestamp and a random suffix, and are created exclusively.
func (s *Store) Render(ctx context.Context, task domain.TaskID, doc *Document) (string, error) {
	if doc == nil {
		return "", errors.New("report document is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now()
	view := documentView{
		Document:    doc,
		Task:        task,
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
	}
	for _, sec := range doc.Sections {
		sv := sectionView{Section: sec}
		if strings.TrimSpace(sec.Markdown) != "" {
			var buf bytes.Buffer
			if err := s.md.Convert([]byte(sec.Markdown), &buf); err != nil {
				return "", fmt.Errorf("failed to convert markdown: %w", err)
			}
			sv.HTML = template.HTML(buf.String()) //nolint:gosec // goldmark escapes raw HTML by default
		}
		view.Sections = append(view.Sections, sv)
	}

	var out bytes.Buffer
	if err := reportTemplate.Execute(&out, view); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		name := fmt.Sprintf("%s_report_%s_%s.html", task, now.Format("20060102_150405"), uuid.New().String()[:8])
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create report file: %w", err)
		}
		if _, err := f.Write(out.Bytes()); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("failed to write report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close report: %w", err)
		}
		return path, nil
	}
	return "", errors.New("failed to allocate a unique report name")
}

// Open validates filename and returns the path of an existing report.
func (s *Store) Open(filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrReportNotFound
	}
	return path, nil
}

// ValidateFilename rejects empty names and names with path components.
func ValidateFilename(filename string) error {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return ErrInvalidFilename
	}
	return nil
}

// ResolveDownloadRef turns a report path into the opaque download token.
func ResolveDownloadRef(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// DownloadURL is the HTTP path serving ref.
func DownloadURL(ref string) string {
	if ref == "" {
		return ""
	}
	return "/report/" + ref
}
