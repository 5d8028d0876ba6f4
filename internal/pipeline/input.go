package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"minutes/internal/services"
	"minutes/internal/task"
	"minutes/internal/transcribe"
)

var allowedExtensions = map[string]struct{}{
	".mp3":  {},
	".mp4":  {},
	".mpeg": {},
	".mpga": {},
	".m4a":  {},
	".wav":  {},
	".webm": {},
}

// AllowedExtensions lists the accepted audio extensions in sorted order.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ValidateSourceName rejects file names whose extension is not a supported
// audio format.
func ValidateSourceName(name string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if _, ok := allowedExtensions[ext]; ok {
		return nil
	}
	return services.Wrap(services.ErrValidation, task.StagePreparing.String(), "validate format",
		fmt.Sprintf("unsupported file format %q; supported: %s", ext, strings.Join(AllowedExtensions(), ", ")), nil)
}

// Input is an upload waiting to be staged. Open is called once, from the
// run goroutine, so it must not depend on the lifetime of an HTTP request.
type Input struct {
	SourceName string
	Size       int64
	Hints      task.Hints
	Open       func() (io.ReadCloser, error)
}

// BytesInput wraps an in-memory upload.
func BytesInput(name string, data []byte, hints task.Hints) Input {
	return Input{
		SourceName: name,
		Size:       int64(len(data)),
		Hints:      hints,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileInput wraps a file on disk. The file is read when the run starts.
func FileInput(path string, hints task.Hints) (Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Input{}, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return Input{}, fmt.Errorf("upload %s is a directory", path)
	}
	return Input{
		SourceName: filepath.Base(path),
		Size:       info.Size(),
		Hints:      hints,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// stageUpload validates the upload and copies it into a temp file under dir.
// The returned Audio.Path is owned by the caller.
func stageUpload(ctx context.Context, dir string, maxBytes int64, in Input) (transcribe.Audio, error) {
	const stageName = "preparing"
	if err := ValidateSourceName(in.SourceName); err != nil {
		return transcribe.Audio{}, err
	}
	if in.Open == nil || in.Size == 0 {
		return transcribe.Audio{}, services.Wrap(services.ErrValidation, stageName, "validate size", "uploaded file is empty", nil)
	}
	if maxBytes > 0 && in.Size > maxBytes {
		return transcribe.Audio{}, tooLarge(maxBytes)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return transcribe.Audio{}, services.Wrap(services.ErrConfiguration, stageName, "ensure staging dir", "staging directory unavailable", err)
	}
	ext := strings.ToLower(filepath.Ext(in.SourceName))
	file, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return transcribe.Audio{}, services.Wrap(services.ErrConfiguration, stageName, "create temp file", "staging directory unavailable", err)
	}
	path := file.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(path)
		}
	}()

	src, err := in.Open()
	if err != nil {
		file.Close()
		return transcribe.Audio{}, services.Wrap(services.ErrValidation, stageName, "open upload", "upload could not be read", err)
	}
	defer src.Close()

	reader := io.Reader(src)
	if maxBytes > 0 {
		reader = io.LimitReader(src, maxBytes+1)
	}
	written, err := io.Copy(file, &progressReader{ctx: ctx, r: reader, total: in.Size})
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return transcribe.Audio{}, services.Wrap(services.ErrValidation, stageName, "stage upload", "upload could not be staged", err)
	}
	if written == 0 {
		return transcribe.Audio{}, services.Wrap(services.ErrValidation, stageName, "validate size", "uploaded file is empty", nil)
	}
	if maxBytes > 0 && written > maxBytes {
		return transcribe.Audio{}, tooLarge(maxBytes)
	}

	keep = true
	return transcribe.Audio{Path: path, Name: in.SourceName, Size: written}, nil
}

func tooLarge(maxBytes int64) error {
	limit := fmt.Sprintf("%d bytes", maxBytes)
	if maxBytes >= 1<<20 {
		limit = fmt.Sprintf("%d MB", maxBytes>>20)
	}
	return services.Wrap(services.ErrValidation, "preparing", "validate size",
		"file exceeds the "+limit+" upload limit", nil)
}

// progressReader reports the fraction of total bytes read so far.
type progressReader struct {
	ctx   context.Context
	r     io.Reader
	total int64
	read  int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.total > 0 && n > 0 {
		services.ReportProgress(p.ctx, float64(p.read)/float64(p.total))
	}
	return n, err
}
