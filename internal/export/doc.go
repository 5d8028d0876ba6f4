// Package export turns a minutes document (markdown) into a deliverable file.
//
// FileExporter renders docx, html, or markdown into the configured export
// directory and returns a file:// URL. BlobPublisher uploads the rendered file
// to Azure Blob Storage and returns the blob URL instead.
package export
