package export

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"minutes/internal/logging"
	"minutes/internal/services"
)

// blobUploader is the subset of *azblob.Client the publisher needs.
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	URL() string
}

// BlobPublisher renders through a FileExporter and uploads the result to an
// Azure Blob Storage container.
type BlobPublisher struct {
	files     *FileExporter
	client    blobUploader
	container string
	logger    *slog.Logger
}

// NewBlobPublisher connects to the storage account named by connectionString.
func NewBlobPublisher(files *FileExporter, connectionString, container string, logger *slog.Logger) (*BlobPublisher, error) {
	client, err := azblob.NewClientFromConnectionString(strings.TrimSpace(connectionString), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "azure client", "invalid azure connection string", err)
	}
	return newBlobPublisher(files, client, container, logger), nil
}

func newBlobPublisher(files *FileExporter, client blobUploader, container string, logger *slog.Logger) *BlobPublisher {
	return &BlobPublisher{
		files:     files,
		client:    client,
		container: strings.TrimSpace(container),
		logger:    logging.NewComponentLogger(logger, "export-blob"),
	}
}

var contentTypes = map[Format]string{
	FormatDocx:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatHTML:     "text/html; charset=utf-8",
	FormatMarkdown: "text/markdown; charset=utf-8",
}

// Export writes the document locally, uploads it, and returns the blob URL.
// The local copy is kept in the export directory.
func (p *BlobPublisher) Export(ctx context.Context, document, title string) (string, error) {
	path, err := p.files.Write(ctx, document, title)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "read rendered file", "read exported file", err)
	}
	name := filepath.Base(path)
	contentType := contentTypes[p.files.Format()]
	// Never replace an existing blob; its URL was handed out for another snapshot.
	ifNoneMatch := azcore.ETagAny
	_, err = p.client.UploadBuffer(ctx, p.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: &ifNoneMatch},
		},
	})
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "upload blob", "upload to azure blob storage", err)
	}
	blobURL := strings.TrimSuffix(p.client.URL(), "/") + "/" + url.PathEscape(p.container) + "/" + url.PathEscape(name)
	p.logger.Info("document uploaded",
		logging.String(logging.FieldEventType, "export_uploaded"),
		logging.String("container", p.container),
		logging.String("blob", name),
	)
	return blobURL, nil
}
