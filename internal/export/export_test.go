package export

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"minutes/internal/services"
)

const sampleMinutes = `# 議事録

## 会議情報
- 日時: 2024-05-01
- 参加者: 田中, 鈴木

## 決定事項
1. **予算** を承認する
2. 次回までに ` + "`plan.md`" + ` を更新する
`

func fixedExporter(t *testing.T, format Format) *FileExporter {
	t.Helper()
	exp, err := NewFileExporter(t.TempDir(), format, nil)
	if err != nil {
		t.Fatalf("NewFileExporter: %v", err)
	}
	exp.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return exp
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Weekly Sync: Q3!":  "weekly-sync-q3",
		"  ":                "minutes",
		"定例会議 5月":          "定例会議-5月",
		"--Budget--Review--": "budget-review",
	}
	for input, want := range tests {
		if got := Slug(input); got != want {
			t.Errorf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMarkdownExportWritesFileURL(t *testing.T) {
	exp := fixedExporter(t, FormatMarkdown)
	got, err := exp.Export(context.Background(), "Some notes", "Weekly Sync")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	wantPath := filepath.Join(exp.dir, "weekly-sync-20240501-093000.md")
	if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "weekly-sync-20240501-093000.md") {
		t.Fatalf("unexpected url %q", got)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "# Weekly Sync\n\nSome notes\n" {
		t.Fatalf("unexpected markdown %q", data)
	}
}

func TestHTMLExportRendersMarkdown(t *testing.T) {
	exp := fixedExporter(t, FormatHTML)
	path, err := exp.Write(context.Background(), sampleMinutes, "<Board>")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	page := string(data)
	for _, want := range []string{"<title>&lt;Board&gt;</title>", "<h1>議事録</h1>", "<strong>予算</strong>", "<ol>"} {
		if !strings.Contains(page, want) {
			t.Errorf("expected %q in html output", want)
		}
	}
}

func TestDocxExportProducesWordDocument(t *testing.T) {
	exp := fixedExporter(t, FormatDocx)
	path, err := exp.Write(context.Background(), sampleMinutes, "定例会議")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	archive, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open docx: %v", err)
	}
	defer archive.Close()
	var body string
	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		body = string(data)
	}
	for _, want := range []string{"定例会議", "会議情報", "予算", "plan.md", "1. "} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in document.xml", want)
		}
	}
}

func TestExportRejectsEmptyDocument(t *testing.T) {
	exp := fixedExporter(t, FormatMarkdown)
	_, err := exp.Export(context.Background(), "   ", "x")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewFileExporterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewFileExporter(t.TempDir(), Format("pdf"), nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeUploader struct {
	container string
	name      string
	data      []byte
	opts      *azblob.UploadBufferOptions
	err       error
}

func (f *fakeUploader) UploadBuffer(_ context.Context, container, name string, data []byte, opts *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
	f.container, f.name, f.data, f.opts = container, name, data, opts
	return azblob.UploadBufferResponse{}, f.err
}

func (f *fakeUploader) URL() string { return "https://acct.blob.core.windows.net/" }

func TestBlobPublisherUploadsRenderedFile(t *testing.T) {
	uploader := &fakeUploader{}
	pub := newBlobPublisher(fixedExporter(t, FormatMarkdown), uploader, "minutes", nil)
	got, err := pub.Export(context.Background(), "notes", "Sync")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got != "https://acct.blob.core.windows.net/minutes/sync-20240501-093000.md" {
		t.Fatalf("unexpected url %q", got)
	}
	if uploader.container != "minutes" || !strings.Contains(string(uploader.data), "notes") {
		t.Fatalf("unexpected upload %+v", uploader)
	}
}

func TestExportKeepsEarlierSnapshotsWithinTheSameSecond(t *testing.T) {
	exp := fixedExporter(t, FormatMarkdown)
	first, err := exp.Export(context.Background(), "# Version A", "Weekly Sync")
	if err != nil {
		t.Fatalf("first Export: %v", err)
	}
	second, err := exp.Export(context.Background(), "# Version B", "Weekly Sync")
	if err != nil {
		t.Fatalf("second Export: %v", err)
	}
	if first == second {
		t.Fatalf("exports share url %q", first)
	}
	if !strings.HasSuffix(second, "weekly-sync-20240501-093000-2.md") {
		t.Fatalf("unexpected second url %q", second)
	}

	firstData, err := os.ReadFile(filepath.Join(exp.dir, "weekly-sync-20240501-093000.md"))
	if err != nil {
		t.Fatalf("read first export: %v", err)
	}
	secondData, err := os.ReadFile(filepath.Join(exp.dir, "weekly-sync-20240501-093000-2.md"))
	if err != nil {
		t.Fatalf("read second export: %v", err)
	}
	if !strings.Contains(string(firstData), "# Version A") || strings.Contains(string(firstData), "Version B") {
		t.Fatalf("first export was overwritten: %q", firstData)
	}
	if !strings.Contains(string(secondData), "# Version B") {
		t.Fatalf("unexpected second export %q", secondData)
	}
}

func TestBlobPublisherUsesDistinctBlobNames(t *testing.T) {
	uploader := &fakeUploader{}
	pub := newBlobPublisher(fixedExporter(t, FormatMarkdown), uploader, "minutes", nil)
	first, err := pub.Export(context.Background(), "one", "Sync")
	if err != nil {
		t.Fatalf("first Export: %v", err)
	}
	second, err := pub.Export(context.Background(), "two", "Sync")
	if err != nil {
		t.Fatalf("second Export: %v", err)
	}
	if first == second {
		t.Fatalf("blob url reused: %q", first)
	}
	if !strings.HasSuffix(second, "/minutes/sync-20240501-093000-2.md") {
		t.Fatalf("unexpected second url %q", second)
	}
	cond := uploader.opts.AccessConditions
	if cond == nil || cond.ModifiedAccessConditions == nil || cond.ModifiedAccessConditions.IfNoneMatch == nil ||
		*cond.ModifiedAccessConditions.IfNoneMatch != azcore.ETagAny {
		t.Fatal("upload must refuse to overwrite an existing blob")
	}
}

func TestBlobPublisherWrapsUploadFailure(t *testing.T) {
	pub := newBlobPublisher(fixedExporter(t, FormatMarkdown), &fakeUploader{err: errors.New("403")}, "minutes", nil)
	if _, err := pub.Export(context.Background(), "notes", "Sync"); !errors.Is(err, services.ErrExport) {
		t.Fatalf("expected export error, got %v", err)
	}
}
