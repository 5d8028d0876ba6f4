package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"minutes/internal/config"
	"minutes/internal/logging"
	"minutes/internal/services"
)

// Exporter renders a minutes document and returns a URL where it can be fetched.
type Exporter interface {
	Export(ctx context.Context, document, title string) (string, error)
}

// Format identifies an output encoding.
type Format string

const (
	FormatDocx     Format = "docx"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Extension returns the file extension written for the format.
func (f Format) Extension() string {
	switch f {
	case FormatDocx:
		return ".docx"
	case FormatHTML:
		return ".html"
	default:
		return ".md"
	}
}

type renderFunc func(title, document, path string) error

// FileExporter writes documents under a local directory and returns file:// URLs.
type FileExporter struct {
	dir    string
	format Format
	render renderFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewFileExporter constructs an exporter for the given output directory and format.
func NewFileExporter(dir string, format Format, logger *slog.Logger) (*FileExporter, error) {
	var render renderFunc
	switch format {
	case FormatDocx:
		render = renderDocx
	case FormatHTML:
		render = renderHTML
	case FormatMarkdown, "":
		format = FormatMarkdown
		render = renderMarkdown
	default:
		return nil, services.Wrap(services.ErrConfiguration, "export", "select format",
			fmt.Sprintf("unsupported export format %q", format), nil)
	}
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "export", "select directory", "export directory required", nil)
	}
	return &FileExporter{
		dir:    dir,
		format: format,
		render: render,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "export"),
	}, nil
}

// Format reports the configured output format.
func (e *FileExporter) Format() Format {
	return e.format
}

// Write renders the document to a new file and returns its path.
func (e *FileExporter) Write(ctx context.Context, document, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(document) == "" {
		return "", services.Wrap(services.ErrValidation, "export", "validate document", "document is empty", nil)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExport, "export", "ensure directory", "create export directory", err)
	}
	title = DisplayTitle(title)
	path, err := e.reservePath(fmt.Sprintf("%s-%s", Slug(title), e.now().Format("20060102-150405")))
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "reserve path", "create export file", err)
	}
	if err := e.render(title, document, path); err != nil {
		_ = os.Remove(path)
		return "", services.Wrap(services.ErrExport, "export", "render "+string(e.format), "render document", err)
	}
	e.logger.Info("document exported",
		logging.String(logging.FieldEventType, "export_written"),
		logging.String("path", path),
		logging.String("format", string(e.format)),
	)
	return path, nil
}

// reservePath creates an empty file named stem plus the format extension,
// adding -2, -3, ... until the name is free. A returned URL therefore always
// keeps pointing at the snapshot it was issued for.
func (e *FileExporter) reservePath(stem string) (string, error) {
	ext := e.format.Extension()
	for attempt := 1; ; attempt++ {
		name := stem + ext
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		}
		path := filepath.Join(e.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
}

// Export writes the document and returns a file:// URL for it.
func (e *FileExporter) Export(ctx context.Context, document, title string) (string, error) {
	path, err := e.Write(ctx, document, title)
	if err != nil {
		return "", err
	}
	return FileURL(path)
}

// FileURL converts a local path into an absolute file:// URL.
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "resolve path", "resolve export path", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// DisplayTitle trims the title and falls back to a generic heading.
func DisplayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Meeting Minutes"
	}
	return title
}

// Slug lowercases the title and collapses everything but letters and digits
// into single dashes. Non-latin letters are kept.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "minutes"
	}
	if runes := []rune(slug); len(runes) > 60 {
		slug = strings.Trim(string(runes[:60]), "-")
	}
	return slug
}

// New builds the exporter described by cfg. A configured Azure connection
// string wraps the file exporter with a blob upload.
func New(cfg *config.Config, logger *slog.Logger) (Exporter, error) {
	files, err := NewFileExporter(cfg.Paths.ExportDir, Format(cfg.Export.Format), logger)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Export.AzureConnectionString) == "" {
		return files, nil
	}
	return NewBlobPublisher(files, cfg.Export.AzureConnectionString, cfg.Export.AzureContainer, logger)
}
